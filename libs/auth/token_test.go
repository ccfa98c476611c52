package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		Sub:  "7b8a6a12-3c58-4a5e-9a43-2f9d9adf1f10",
		Role: RoleStaff,
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(time.Hour).Unix(),
	}

	token, err := SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	got, err := VerifyHS256(token, secret)
	if err != nil {
		t.Fatalf("VerifyHS256: %v", err)
	}
	if got.Sub != claims.Sub || got.Role != claims.Role {
		t.Fatalf("claims = %+v, want %+v", got, claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := SignHS256(Claims{Sub: "u1", Role: RoleCustomer}, []byte("right"))
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	if _, err := VerifyHS256(token, []byte("wrong")); err == nil {
		t.Fatal("token signed with another secret should not verify")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	secret := []byte("s")
	token, err := SignHS256(Claims{
		Sub: "u1",
		Exp: time.Now().Add(-time.Minute).Unix(),
	}, secret)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	if _, err := VerifyHS256(token, secret); err == nil {
		t.Fatal("expired token should not verify")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "a.b", "a.b.c.d", "!!!.@@@.###"} {
		if _, err := VerifyHS256(bad, []byte("s")); err == nil {
			t.Errorf("token %q should not verify", bad)
		}
	}
}
