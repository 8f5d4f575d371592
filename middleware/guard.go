package middleware

import (
	"context"
	"net/http"

	"github.com/projectatlas/astaauth"
)

// Checker is the gate contract the guard needs. *astaauth.Engine and
// *astaauth.Gate both satisfy it.
type Checker interface {
	Check(ctx context.Context, authorizationHeader string) astaauth.GateResult
}

// Guard rejects requests the gate does not admit. Every unauthenticated
// outcome gets the same 401 with a Bearer challenge; store outages get 503.
func Guard(gate Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate == nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			res := gate.Check(r.Context(), r.Header.Get("Authorization"))
			if !res.Allowed() {
				writeRejection(w, res.Outcome)
				return
			}

			ctx := astaauth.WithIdentity(r.Context(), res.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StatusFor maps a gate outcome to the HTTP status a transport should send.
func StatusFor(outcome astaauth.GateOutcome) int {
	switch outcome {
	case astaauth.GateAllowed:
		return http.StatusOK
	case astaauth.GateUnauthenticated:
		return http.StatusUnauthorized
	case astaauth.GateUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Challenge is the WWW-Authenticate value sent with every 401.
const Challenge = "Bearer"

func writeRejection(w http.ResponseWriter, outcome astaauth.GateOutcome) {
	status := StatusFor(outcome)
	switch status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", Challenge)
		http.Error(w, "could not validate credentials", status)
	case http.StatusServiceUnavailable:
		http.Error(w, "service unavailable", status)
	default:
		http.Error(w, "internal server error", status)
	}
}
