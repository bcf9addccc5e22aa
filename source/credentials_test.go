package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "doc-fetcher"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return token
}

func TestCredentials_PlainAPIKey(t *testing.T) {
	creds, err := NewCredentials("sk-plain-key")
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}
	if creds.Empty() || creds.Bearer() {
		t.Errorf("plain key classified empty=%v bearer=%v", creds.Empty(), creds.Bearer())
	}
	if err := creds.Check(time.Now()); err != nil {
		t.Errorf("plain key Check should never fail, got %v", err)
	}
}

func TestCredentials_Empty(t *testing.T) {
	creds, err := NewCredentials("   ")
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}
	if !creds.Empty() {
		t.Error("whitespace credential should be empty")
	}
}

func TestCredentials_ValidBearer(t *testing.T) {
	creds, err := NewCredentials(signedToken(t, time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}
	if !creds.Bearer() {
		t.Fatal("JWT credential should classify as bearer")
	}
	if err := creds.Check(time.Now()); err != nil {
		t.Errorf("unexpired bearer Check failed: %v", err)
	}
}

func TestCredentials_ExpiredBearer(t *testing.T) {
	creds, err := NewCredentials(signedToken(t, time.Now().Add(-time.Hour)))
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}
	if err := creds.Check(time.Now()); !errors.Is(err, ErrAuth) {
		t.Errorf("expired bearer Check returned %v, want ErrAuth", err)
	}
}

func TestCredentials_BearerWithoutExp(t *testing.T) {
	creds, err := NewCredentials(signedToken(t, time.Time{}))
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}
	if err := creds.Check(time.Now()); err != nil {
		t.Errorf("bearer without exp Check should pass, got %v", err)
	}
}

func TestHTTPSource_ExpiredBearerShortCircuits(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	creds, err := NewCredentials(signedToken(t, time.Now().Add(-time.Minute)))
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}
	src, err := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, Credentials: creds})
	if err != nil {
		t.Fatalf("NewHTTPSource failed: %v", err)
	}

	_, err = src.Fetch(context.Background(), "react", "")
	if !errors.Is(err, ErrAuth) {
		t.Errorf("Fetch with expired bearer returned %v, want ErrAuth", err)
	}
	if called {
		t.Error("expired bearer must not reach the upstream")
	}
}

func TestHTTPSource_BearerHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("docs"))
	}))
	defer srv.Close()

	token := signedToken(t, time.Now().Add(time.Hour))
	creds, err := NewCredentials(token)
	if err != nil {
		t.Fatalf("NewCredentials failed: %v", err)
	}
	src, err := NewHTTPSource(HTTPConfig{BaseURL: srv.URL, Credentials: creds})
	if err != nil {
		t.Fatalf("NewHTTPSource failed: %v", err)
	}

	if _, err := src.Fetch(context.Background(), "react", ""); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if gotAuth != "Bearer "+token {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}
