package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"parapet/pkg/routes"
	"parapet/pkg/token"
	"parapet/pkg/users"
)

const (
	testSecret   = "test-secret"
	testIssuer   = "auth-service"
	testAudience = "polyglot-platform"
)

func testCodec() *token.Codec {
	return token.NewCodec(testSecret, testIssuer, testAudience)
}

func issueToken(t *testing.T, u users.User) string {
	t.Helper()
	raw, err := token.NewIssuer(testCodec(), testIssuer, testAudience, time.Hour).Issue(u)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return raw
}

func expiredToken(t *testing.T) string {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	raw, err := testCodec().Encode(token.Claims{
		SubjectID: 1,
		Username:  "admin",
		Role:      "Admin",
		IssuedAt:  now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Second),
		Issuer:    testIssuer,
		Audience:  testAudience,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

// newPipeline builds a pipeline routing /tasks (auth), /admin (auth+role) and
// /open (anonymous) to the given backend URL.
func newPipeline(t *testing.T, backendURL string) *Pipeline {
	t.Helper()
	c := &routes.Cluster{Endpoints: []string{backendURL}}
	tbl, err := routes.New(
		map[string]*routes.Cluster{"backend": c},
		[]routes.Route{
			{Prefix: "/tasks", Cluster: c, RequiresAuth: true},
			{Prefix: "/admin", Cluster: c, RequiresAuth: true, RequireRole: "Admin"},
			{Prefix: "/open", Cluster: c},
		},
	)
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	return New(token.NewValidator(testCodec()), tbl, 2*time.Second, zap.NewNop().Sugar())
}

type captured struct {
	hit    bool
	header http.Header
	path   string
}

func captureBackend(c *captured) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.hit = true
		c.header = r.Header.Clone()
		c.path = r.URL.Path
		w.Header().Set("X-Backend", "task-service")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42}`))
	})
}

func TestProtectedRouteWithoutTokenRejected(t *testing.T) {
	var cap captured
	backend := httptest.NewServer(captureBackend(&cap))
	defer backend.Close()
	p := newPipeline(t, backend.URL)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/42", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if cap.hit {
		t.Error("backend was contacted for an unauthenticated protected request")
	}
}

func TestProtectedRouteWithValidTokenForwarded(t *testing.T) {
	var cap captured
	backend := httptest.NewServer(captureBackend(&cap))
	defer backend.Close()
	p := newPipeline(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/tasks/42?full=1", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, users.User{ID: 7, Username: "admin", Role: "Admin"}))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if !cap.hit {
		t.Fatal("backend not contacted")
	}
	if cap.path != "/tasks/42" {
		t.Errorf("backend path = %q", cap.path)
	}
	if got := cap.header.Get(HeaderUserID); got != "7" {
		t.Errorf("X-User-Id = %q, want 7", got)
	}
	if got := cap.header.Get(HeaderUsername); got != "admin" {
		t.Errorf("X-Username = %q, want admin", got)
	}
	if got := cap.header.Get(HeaderUserRole); got != "Admin" {
		t.Errorf("X-User-Role = %q, want Admin", got)
	}

	// Response relayed unchanged.
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if got := rec.Header().Get("X-Backend"); got != "task-service" {
		t.Errorf("X-Backend = %q, response headers not preserved", got)
	}
	if body := rec.Body.String(); !strings.Contains(body, `"id":42`) {
		t.Errorf("body = %q, not relayed", body)
	}
}

func TestClientSuppliedIdentityHeadersStripped(t *testing.T) {
	var cap captured
	backend := httptest.NewServer(captureBackend(&cap))
	defer backend.Close()
	p := newPipeline(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/open/doc", nil)
	req.Header.Set(HeaderUserRole, "Admin")
	req.Header.Set(HeaderUserID, "1")
	req.Header.Set(HeaderUsername, "root")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if !cap.hit {
		t.Fatal("backend not contacted")
	}
	for _, h := range []string{HeaderUserID, HeaderUsername, HeaderUserRole} {
		if got := cap.header.Get(h); got != "" {
			t.Errorf("%s = %q leaked downstream on anonymous request", h, got)
		}
	}
}

func TestInvalidTokenOnOpenRouteProceedsAnonymously(t *testing.T) {
	var cap captured
	backend := httptest.NewServer(captureBackend(&cap))
	defer backend.Close()
	p := newPipeline(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/open/doc", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want relayed 201", rec.Code)
	}
	if !cap.hit {
		t.Fatal("backend not contacted")
	}
	if got := cap.header.Get(HeaderUsername); got != "" {
		t.Errorf("X-Username = %q on anonymous request", got)
	}
}

func TestInvalidTokenOnProtectedRouteRejected(t *testing.T) {
	var cap captured
	backend := httptest.NewServer(captureBackend(&cap))
	defer backend.Close()
	p := newPipeline(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/tasks/1", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if cap.hit {
		t.Error("backend contacted despite invalid token")
	}
}

func TestExpiredTokenOnProtectedRouteRejected(t *testing.T) {
	var cap captured
	backend := httptest.NewServer(captureBackend(&cap))
	defer backend.Close()
	p := newPipeline(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/tasks/1", nil)
	req.Header.Set("Authorization", "Bearer "+expiredToken(t))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if cap.hit {
		t.Error("backend contacted despite expired token")
	}
}

func TestRoleRestrictedRoute(t *testing.T) {
	var cap captured
	backend := httptest.NewServer(captureBackend(&cap))
	defer backend.Close()
	p := newPipeline(t, backend.URL)

	req := httptest.NewRequest(http.MethodGet, "/admin/panel", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, users.User{ID: 2, Username: "bob", Role: "User"}))
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if cap.hit {
		t.Error("backend contacted despite role mismatch")
	}

	cap = captured{}
	req = httptest.NewRequest(http.MethodGet, "/admin/panel", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, users.User{ID: 1, Username: "admin", Role: "Admin"}))
	rec = httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated || !cap.hit {
		t.Errorf("admin request: status=%d hit=%v, want forwarded", rec.Code, cap.hit)
	}
}

func TestUnmatchedPathNotFound(t *testing.T) {
	backend := httptest.NewServer(captureBackend(&captured{}))
	defer backend.Close()
	p := newPipeline(t, backend.URL)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestBackendUnreachableIs502(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := backend.URL
	backend.Close() // nothing listens anymore
	p := newPipeline(t, url)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open/x", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestBackendTimeoutIs504(t *testing.T) {
	block := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer backend.Close()
	defer close(block)

	c := &routes.Cluster{Endpoints: []string{backend.URL}}
	tbl, err := routes.New(map[string]*routes.Cluster{"backend": c},
		[]routes.Route{{Prefix: "/slow", Cluster: c}})
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	p := New(token.NewValidator(testCodec()), tbl, 50*time.Millisecond, zap.NewNop().Sugar())

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow/x", nil))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestBackendErrorStatusPassedThrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusConflict)
	}))
	defer backend.Close()
	p := newPipeline(t, backend.URL)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open/x", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want backend's 409 relayed", rec.Code)
	}
}
