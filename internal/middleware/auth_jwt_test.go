package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const testSecret = "test-secret"

func identityEcho(t *testing.T, wantUser string, wantAdmin bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := UserIDFromContext(r.Context()); got != wantUser {
			t.Errorf("user id = %q, want %q", got, wantUser)
		}
		if got := IsAdminFromContext(r.Context()); got != wantAdmin {
			t.Errorf("admin = %v, want %v", got, wantAdmin)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthJWTRoundTrip(t *testing.T) {
	token, err := SignToken(testSecret, "alice", true)
	if err != nil {
		t.Fatal(err)
	}

	handler := AuthJWT(testSecret)(identityEcho(t, "alice", true))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestAuthJWTRejections(t *testing.T) {
	goodToken, err := SignToken(testSecret, "alice", false)
	if err != nil {
		t.Fatal(err)
	}
	wrongSecret, err := SignToken("other-secret", "alice", false)
	if err != nil {
		t.Fatal(err)
	}
	emptySubject, err := SignToken(testSecret, "", false)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic " + goodToken},
		{"garbage token", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + wrongSecret},
		{"empty subject", "Bearer " + emptySubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthJWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not run")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	called := false
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ContextWithUser(req.Context(), "bob", false)))
	if rec.Code != http.StatusForbidden || called {
		t.Errorf("non-admin: status = %d called = %v", rec.Code, called)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ContextWithUser(req.Context(), "root", true)))
	if !called {
		t.Error("admin must pass through")
	}
}
