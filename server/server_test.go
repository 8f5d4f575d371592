package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projectatlas/astaauth"
	"github.com/projectatlas/astaauth/store/memory"
)

var errDown = errors.New("connection refused")

// flakyStore fails every call while down is set.
type flakyStore struct {
	*memory.Store
	down atomic.Bool
}

func (s *flakyStore) FindByEmail(ctx context.Context, email string) (*astaauth.Credential, error) {
	if s.down.Load() {
		return nil, errDown
	}
	return s.Store.FindByEmail(ctx, email)
}

func (s *flakyStore) FindByID(ctx context.Context, id int64) (*astaauth.Credential, error) {
	if s.down.Load() {
		return nil, errDown
	}
	return s.Store.FindByID(ctx, id)
}

func (s *flakyStore) List(ctx context.Context, limit, offset int) ([]astaauth.Credential, error) {
	if s.down.Load() {
		return nil, errDown
	}
	return s.Store.List(ctx, limit, offset)
}

type fixture struct {
	handler http.Handler
	engine  *astaauth.Engine
	store   *flakyStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := astaauth.DefaultConfig()
	cfg.JWT.SecretKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = false

	store := &flakyStore{Store: memory.New()}
	engine, err := astaauth.New().
		WithConfig(cfg).
		WithCredentialStore(store).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srv := New(Config{}, engine, zerolog.Nop())
	return &fixture{handler: srv.Handler(), engine: engine, store: store}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formLogin(email, password string) *http.Request {
	form := url.Values{"username": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (f *fixture) registerAndLogin(t *testing.T, email string) string {
	t.Helper()
	rr := f.do(t, jsonRequest(t, http.MethodPost, "/users", map[string]string{
		"email": email, "password": "hunter2hunter2", "full_name": "Test User",
	}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, formLogin(email, "hunter2hunter2"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var tok astaauth.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	assert.Equal(t, "bearer", tok.TokenType)
	require.NotEmpty(t, tok.AccessToken)
	return tok.AccessToken
}

func detailOf(t *testing.T, rr *httptest.ResponseRecorder) any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["detail"]
}

func TestRootWelcome(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Welcome to the ASTA Core API"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRegisterLoginMe(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "bob@example.com")

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := f.do(t, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var me map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, "bob@example.com", me["email"])
	assert.Equal(t, true, me["is_active"])
	assert.NotContains(t, me, "hashed_password")
	assert.NotContains(t, rr.Body.String(), "argon2id")
}

func TestLoginJSONBody(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t, "carol@example.com")

	rr := f.do(t, jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email": "carol@example.com", "password": "hunter2hunter2",
	}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestLoginFailuresAreIdentical(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t, "dave@example.com")

	wrong := f.do(t, formLogin("dave@example.com", "not-the-password"))
	unknown := f.do(t, formLogin("nobody@example.com", "hunter2hunter2"))

	for _, rr := range []*httptest.ResponseRecorder{wrong, unknown} {
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
	}
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Incorrect email or password", detailOf(t, wrong))
}

func TestLoginInvalidInput(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, formLogin("not-an-email", ""))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	d, ok := detailOf(t, rr).([]any)
	require.True(t, ok, "detail should be a list of field errors")
	assert.Len(t, d, 2)
}

func TestRegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t, "erin@example.com")

	rr := f.do(t, jsonRequest(t, http.MethodPost, "/users", map[string]string{
		"email": "erin@example.com", "password": "another-password",
	}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "A user with this email already exists.", detailOf(t, rr))
}

func TestRegisterMalformedBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rr := f.do(t, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestProtectedRoutesRejectUniformly(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "frank@example.com")

	headers := []string{
		"",
		"Basic Zm9vOmJhcg==",
		"Bearer ",
		"Bearer not.a.token",
		"Bearer " + token + "x",
	}

	var first string
	for _, h := range headers {
		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		if h != "" {
			req.Header.Set("Authorization", h)
		}
		rr := f.do(t, req)
		require.Equal(t, http.StatusUnauthorized, rr.Code, "header %q", h)
		assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
		if first == "" {
			first = rr.Body.String()
		}
		assert.Equal(t, first, rr.Body.String(), "header %q", h)
	}
	assert.Contains(t, first, "Could not validate credentials")
}

func TestDeactivatedAccountLosesAccess(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "grace@example.com")

	id, err := f.engine.ValidateToken(token)
	require.NoError(t, err)
	require.NoError(t, f.store.SetActive(context.Background(), id, false))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := f.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "heidi@example.com")
	f.registerAndLogin(t, "ivan@example.com")

	req := httptest.NewRequest(http.MethodGet, "/users?limit=1&offset=1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := f.do(t, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var users []astaauth.Identity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "ivan@example.com", users[0].Email)

	req = httptest.NewRequest(http.MethodGet, "/users?limit=0", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, req).Code)
}

func TestStoreOutageIsServiceUnavailable(t *testing.T) {
	f := newFixture(t)
	token := f.registerAndLogin(t, "judy@example.com")
	f.store.down.Store(true)

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := f.do(t, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Empty(t, rr.Header().Get("WWW-Authenticate"))

	rr = f.do(t, formLogin("judy@example.com", "hunter2hunter2"))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.registerAndLogin(t, "mallory@example.com")

	rr := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `astaauth_login_total{result="success"} 1`)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
}

func TestRequestIDPropagated(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := f.do(t, req)
	assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	srv := New(Config{ShutdownTimeout: time.Second}, f.engine, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
