package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jamilsaadou/naneye-sub000/internal/repository"
)

type fakeTokenRepo struct {
	token *repository.PersonalAccessToken
	err   error
}

func (f *fakeTokenRepo) FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error) {
	return f.token, f.err
}

func TestStaffMiddleware_setsUserID(t *testing.T) {
	token := &repository.PersonalAccessToken{ID: 1, UserID: 123}
	fr := &fakeTokenRepo{token: token}

	var got int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := GetUserID(r.Context())
		if err != nil {
			t.Fatalf("expected user id present, got err: %v", err)
		}
		got = uid
		w.WriteHeader(http.StatusOK)
	})

	mw := StaffMiddleware(fr)
	srv := mw(handler)

	req := httptest.NewRequest("POST", "/api/payments/manual", nil)
	req.Header.Set("Authorization", "Bearer mytoken")
	rr := httptest.NewRecorder()

	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rr.Code)
	}
	if got != 123 {
		t.Fatalf("expected user id 123 in context, got %d", got)
	}
}

func TestStaffMiddleware_blockWhenMissing(t *testing.T) {
	fr := &fakeTokenRepo{token: nil}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with missing token")
	})
	mw := StaffMiddleware(fr)
	srv := mw(handler)

	req := httptest.NewRequest("POST", "/api/payments/manual", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 Unauthorized, got %d", rr.Code)
	}
}

func TestStaffMiddleware_blockWhenExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	fr := &fakeTokenRepo{token: &repository.PersonalAccessToken{ID: 1, UserID: 123, ExpiresAt: &past}}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with expired token")
	})
	mw := StaffMiddleware(fr)
	srv := mw(handler)

	req := httptest.NewRequest("POST", "/api/payments/manual", nil)
	req.Header.Set("Authorization", "Bearer mytoken")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 Unauthorized, got %d", rr.Code)
	}
}

func TestStaffMiddleware_allowsOptions(t *testing.T) {
	fr := &fakeTokenRepo{token: nil}
	reached := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})
	mw := StaffMiddleware(fr)
	srv := mw(handler)

	req := httptest.NewRequest("OPTIONS", "/api/payments/manual", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 No Content, got %d", rr.Code)
	}
	if !reached {
		t.Fatalf("expected handler to be reached on OPTIONS")
	}
}
