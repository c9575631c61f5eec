package auth

import (
	"testing"
	"time"
)

var testSecret = []byte("test-secret")

func TestSignAndValidate(t *testing.T) {
	token, err := Sign(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := Validate(testSecret, token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("user id = %q", claims.UserID)
	}
	if claims.Role != "user" {
		t.Errorf("role = %q", claims.Role)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := Sign(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Validate([]byte("other-secret"), token); err == nil {
		t.Error("token validated with the wrong secret")
	}
}

func TestParseUnverified(t *testing.T) {
	token, err := Sign(testSecret, "user-2", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	claims, err := ParseUnverified(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID != "user-2" {
		t.Errorf("user id = %q", claims.UserID)
	}

	if _, err := ParseUnverified("not-a-token"); err == nil {
		t.Error("garbage parsed as a token")
	}
}

func TestExpired(t *testing.T) {
	fresh, err := Sign(testSecret, "user-3", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if Expired(fresh, time.Now()) {
		t.Error("fresh token reported expired")
	}
	if !Expired(fresh, time.Now().Add(2*time.Hour)) {
		t.Error("token not expired past its ttl")
	}
	if !Expired("garbage", time.Now()) {
		t.Error("malformed token must count as expired")
	}
}
