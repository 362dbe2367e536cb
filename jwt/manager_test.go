package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

const (
	testAccessSecret  = "access-secret-access-secret-0001"
	testRefreshSecret = "refresh-secret-refresh-secret-01"
)

func newTestManager(t *testing.T, secret string, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager(Config{Secret: []byte(secret), TTL: ttl})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	cases := []Config{
		{TTL: time.Minute},
		{Secret: []byte(testAccessSecret)},
		{Secret: []byte(testAccessSecret), TTL: time.Minute, Leeway: -time.Second},
		{Secret: []byte(testAccessSecret), TTL: time.Minute, Leeway: 3 * time.Minute},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t, testAccessSecret, time.Minute)

	token, expiresAt, err := m.Issue("u1", "a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if time.Until(expiresAt) <= 0 || time.Until(expiresAt) > time.Minute {
		t.Fatalf("unexpected expiry %v", expiresAt)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "a@b.com" {
		t.Fatalf("claims changed in round trip: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}
}

func TestIssueProducesDistinctTokensWithinOneSecond(t *testing.T) {
	m := newTestManager(t, testRefreshSecret, time.Hour)

	first, _, err := m.Issue("u1", "a@b.com")
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	second, _, err := m.Issue("u1", "a@b.com")
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct tokens for the same principal")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer, err := NewManager(Config{
		Secret: []byte(testAccessSecret),
		TTL:    time.Minute,
		Now:    func() time.Time { return past },
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := issuer.Issue("u1", "a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	verifier := newTestManager(t, testAccessSecret, time.Minute)
	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyLeewayAcceptsRecentlyExpired(t *testing.T) {
	secret := []byte(testAccessSecret)
	claims := Claims{UserID: "u1", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-15 * time.Second)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	strict := newTestManager(t, testAccessSecret, time.Minute)
	if _, err := strict.Verify(token); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired without leeway, got %v", err)
	}

	lenient, err := NewManager(Config{Secret: secret, TTL: time.Minute, Leeway: 30 * time.Second})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := lenient.Verify(token); err != nil {
		t.Fatalf("expected token within leeway to verify: %v", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	access := newTestManager(t, testAccessSecret, time.Minute)
	refresh := newTestManager(t, testRefreshSecret, time.Hour)

	token, _, err := access.Issue("u1", "a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := refresh.Verify(token); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if _, err := Verify(token, []byte("some-other-secret")); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature from functional verify, got %v", err)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	secret := []byte(testAccessSecret)
	claims := Claims{UserID: "u1", RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}

	hs512, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}
	if _, err := Verify(hs512, secret); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected hs512 to be rejected as invalid signature, got %v", err)
	}

	none, err := gjwt.NewWithClaims(gjwt.SigningMethodNone, claims).SignedString(gjwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := Verify(none, secret); err == nil {
		t.Fatal("expected alg=none token to be rejected")
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	m := newTestManager(t, testRefreshSecret, time.Hour)
	token, _, err := m.Issue("u1", "a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tampered := flipPayloadChar(token)
	if tampered == token {
		t.Fatal("tamper helper did not change the token")
	}

	_, err = m.Verify(tampered)
	if !errors.Is(err, ErrInvalidSignature) && !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected tampered token to fail verification, got %v", err)
	}
}

func TestVerifyMalformedInput(t *testing.T) {
	m := newTestManager(t, testAccessSecret, time.Minute)
	for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d", "!!!.???.###"} {
		if _, err := m.Verify(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestVerifyRequiresExpiryAndUserID(t *testing.T) {
	secret := []byte(testAccessSecret)

	noExp, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{UserID: "u1"}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(noExp, secret); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected token without exp to be malformed, got %v", err)
	}

	noUser, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{RegisteredClaims: gjwt.RegisteredClaims{
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := Verify(noUser, secret); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected token without userId to be malformed, got %v", err)
	}
}

func TestVerifyIssuerMismatch(t *testing.T) {
	issuer, err := NewManager(Config{Secret: []byte(testAccessSecret), TTL: time.Minute, Issuer: "other"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	token, _, err := issuer.Issue("u1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	verifier, err := NewManager(Config{Secret: []byte(testAccessSecret), TTL: time.Minute, Issuer: "rotor"})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestFunctionalIssueVerify(t *testing.T) {
	secret := []byte(testRefreshSecret)
	token, err := Issue(Claims{UserID: "u1", Email: "a@b.com"}, secret, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := Verify(token, secret)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "a@b.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

// flipPayloadChar swaps one character in the middle of the payload segment.
func flipPayloadChar(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || len(parts[1]) < 4 {
		return token
	}
	payload := []byte(parts[1])
	i := len(payload) / 2
	if payload[i] == 'A' {
		payload[i] = 'B'
	} else {
		payload[i] = 'A'
	}
	parts[1] = string(payload)
	return strings.Join(parts, ".")
}
