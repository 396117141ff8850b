package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/havenpoint/facility-response/internal/domain"
)

type stubVerifier struct {
	subject string
	role    domain.Role
	err     error
}

func (s *stubVerifier) Verify(_ context.Context, _ string) (string, domain.Role, error) {
	return s.subject, s.role, s.err
}

func authedHandler(t *testing.T, wantSubject string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantSubject, GetUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware(t *testing.T) {
	verifier := &stubVerifier{subject: "dispatcher-1", role: domain.RoleDispatcher}
	handler := AuthMiddleware(verifier)(authedHandler(t, "dispatcher-1"))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid bearer", header: "Bearer some-token", wantStatus: http.StatusOK},
		{name: "case insensitive scheme", header: "bearer some-token", wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic dXNlcg==", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthMiddleware_RejectsBadToken(t *testing.T) {
	verifier := &stubVerifier{err: assert.AnError}
	handler := AuthMiddleware(verifier)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run for a rejected token")
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		role       domain.Role
		min        domain.Role
		wantStatus int
	}{
		{name: "exact role", role: domain.RoleDispatcher, min: domain.RoleDispatcher, wantStatus: http.StatusOK},
		{name: "higher role", role: domain.RoleCommander, min: domain.RoleDispatcher, wantStatus: http.StatusOK},
		{name: "lower role", role: domain.RoleViewer, min: domain.RoleCommander, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(context.WithValue(r.Context(), RoleKey, tt.role))
			w := httptest.NewRecorder()
			RequireRole(tt.min)(ok).ServeHTTP(w, r)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequireRole_NoRoleInContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	RequireRole(domain.RoleViewer)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run without an authenticated role")
	})).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
