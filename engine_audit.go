package astaauth

import (
	"context"
	"errors"
	"time"
)

// Audit event types.
const (
	eventLoginSuccess          = "login_success"
	eventLoginFailure          = "login_failure"
	eventGateDenied            = "gate_denied"
	eventGateUnavailable       = "gate_unavailable"
	eventRegistrationSuccess   = "registration_success"
	eventRegistrationDuplicate = "registration_duplicate"
	eventAccountStatus         = "account_status"
)

// auditCode is the error label on a failed audit event. Authentication
// failures use their Kind name; everything else maps through auditCodes.
type auditCode string

const (
	codeDuplicate   auditCode = "duplicate"
	codeUnavailable auditCode = "backend_unavailable"
	codeInternal    auditCode = "internal_error"
)

var auditCodes = []struct {
	target error
	code   auditCode
}{
	{ErrEmailTaken, codeDuplicate},
	{ErrServiceUnavailable, codeUnavailable},
}

func codeFor(err error) auditCode {
	if err == nil {
		return ""
	}
	if kind, ok := AuthKindOf(err); ok {
		return auditCode(kind.String())
	}
	for _, c := range auditCodes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return codeInternal
}

// emitAudit hands one event to the dispatcher. meta is only called when
// auditing is on.
func (e *Engine) emitAudit(ctx context.Context, typ string, ok bool, subject string, err error, meta func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	ev := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: typ,
		Subject:   subject,
		Success:   ok,
		Error:     string(codeFor(err)),
	}
	if ctx != nil {
		ev.RequestID = RequestIDFromContext(ctx)
		ev.IP = clientIPFromContext(ctx)
	}
	if meta != nil {
		ev.Metadata = meta()
	}

	e.audit.Emit(ctx, ev)
}

func (e *Engine) metricInc(id MetricID) {
	if e != nil {
		e.metrics.Inc(id)
	}
}

// observe records the time since start; use it with defer.
func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, e.now().Sub(start))
}
