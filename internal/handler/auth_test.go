package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/petits-plats/api/internal/auth"
	"github.com/petits-plats/api/internal/config"
	"github.com/petits-plats/api/internal/handler"
)

func newAuthRouter(t *testing.T, password string) chi.Router {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	cfg := &config.Config{
		JWTSecret:            "test-secret",
		OperatorName:         "marie",
		OperatorPasswordHash: string(hash),
	}
	h := handler.NewAuthHandler(cfg)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestLogin(t *testing.T) {
	r := newAuthRouter(t, "correct-horse")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		bytes.NewBufferString(`{"operator":"marie","password":"correct-horse"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	claims, err := auth.ValidateToken("test-secret", resp.Token)
	if err != nil {
		t.Fatalf("returned token does not validate: %v", err)
	}
	if claims.Operator != "marie" {
		t.Errorf("operator: got %q", claims.Operator)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	r := newAuthRouter(t, "correct-horse")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		bytes.NewBufferString(`{"operator":"marie","password":"wrong"}`)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestLoginUnknownOperator(t *testing.T) {
	r := newAuthRouter(t, "correct-horse")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		bytes.NewBufferString(`{"operator":"nobody","password":"correct-horse"}`)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
}

func TestLoginBadBody(t *testing.T) {
	r := newAuthRouter(t, "correct-horse")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login",
		bytes.NewBufferString(`not json`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rec.Code)
	}
}
