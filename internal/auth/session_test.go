package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionLifecycle(t *testing.T) {
	store := NewSessionStore()

	if store.Token() != "" || store.Valid(time.Now()) {
		t.Fatal("fresh store must be logged out")
	}

	exp := time.Now().Add(time.Hour)
	sess := store.Set("tok-123", &Claims{
		Name: "Ahmad",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	if sess.User.ID != "user-1" || sess.User.Name != "Ahmad" {
		t.Fatalf("session user = %+v", sess.User)
	}
	if store.Token() != "tok-123" {
		t.Fatalf("token = %q", store.Token())
	}
	if !store.Valid(time.Now()) {
		t.Fatal("session should be valid before expiry")
	}
	if store.Valid(exp.Add(time.Second)) {
		t.Fatal("session must be invalid after expiry")
	}

	store.Clear()
	if _, ok := store.Current(); ok {
		t.Fatal("cleared store must hold no session")
	}
}
