package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		AccessTTL:     ttl,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "todo-api",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAndParseAccessRoundTrip(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok, err := m.CreateAccess("u-1", "a@b.c", "COMMON")
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	claims, err := m.ParseAccess(tok)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if claims.Subject != "u-1" || claims.Email != "a@b.c" || claims.Role != "COMMON" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute))}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseAccessExpired(t *testing.T) {
	m := newHSManager(t, time.Minute)
	tok, err := m.CreateAccessWithTTL("u", "", "", -time.Minute)
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(tok); !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256},
		{AccessTTL: time.Minute, SigningMethod: MethodEd25519},
		{AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: []byte("k")},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestInspectReadsClaimsWithoutKey(t *testing.T) {
	m := newHSManager(t, time.Minute)
	tok, _ := m.CreateAccess("u-9", "x@y.z", "PREMIUM")

	claims, err := Inspect(tok)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if claims.Role != "PREMIUM" || claims.Subject != "u-9" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := Inspect("opaque-token"); !errors.Is(err, ErrNotJWT) {
		t.Fatalf("expected ErrNotJWT, got %v", err)
	}
}

func TestExpiresWithin(t *testing.T) {
	m := newHSManager(t, time.Minute)
	now := time.Now()

	fresh, _ := m.CreateAccessWithTTL("u", "", "", 10*time.Minute)
	if ExpiresWithin(fresh, 30*time.Second, now) {
		t.Fatalf("fresh token must not be reported as expiring")
	}

	soon, _ := m.CreateAccessWithTTL("u", "", "", 10*time.Second)
	if !ExpiresWithin(soon, 30*time.Second, now) {
		t.Fatalf("token expiring in 10s must be inside a 30s window")
	}

	expired, _ := m.CreateAccessWithTTL("u", "", "", -time.Second)
	if !ExpiresWithin(expired, 0, now) {
		t.Fatalf("expired token must be reported")
	}

	if ExpiresWithin("opaque", time.Hour, now) {
		t.Fatalf("opaque tokens are never reported as expiring")
	}
}
