package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newTestTokenService creates a TokenService for testing.
// It uses a fixed, known secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService([]byte("test-secret-at-least-16-chars!!"), 30*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService([]byte("short"), time.Minute)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_NonPositiveTTL(t *testing.T) {
	_, err := NewTokenService([]byte("this-is-16-chars"), 0)
	if err == nil {
		t.Fatal("NewTokenService() should reject a zero TTL")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	ts, err := NewTokenService([]byte("this-is-16-chars"), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
	if ts.TTL() != time.Hour {
		t.Errorf("TTL() = %v, want %v", ts.TTL(), time.Hour)
	}
}

// =========================================================================
// ISSUE TESTS
// =========================================================================

func TestIssue_ReturnsJWTAndExpiry(t *testing.T) {
	ts := newTestTokenService(t)

	before := time.Now()
	token, expires, err := ts.Issue("cs2kq1p0abc")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// JWT tokens have 3 dot-separated parts: header.payload.signature
	if got := strings.Count(token, "."); got != 2 {
		t.Errorf("Issue() token doesn't look like a JWT (expected 2 dots, got %d)", got)
	}

	want := before.Add(30 * time.Minute)
	if expires.Before(want.Add(-time.Second)) || expires.After(want.Add(time.Second)) {
		t.Errorf("expires = %v, want about %v", expires, want)
	}
}

func TestIssue_RejectsEmptySessionID(t *testing.T) {
	ts := newTestTokenService(t)

	if _, _, err := ts.Issue(""); err == nil {
		t.Fatal("Issue() should refuse to sign a token without a subject")
	}
}

func TestIssue_DifferentSessionsGetDifferentTokens(t *testing.T) {
	ts := newTestTokenService(t)

	token1, _, _ := ts.Issue("session-aaa")
	token2, _, _ := ts.Issue("session-bbb")

	if token1 == token2 {
		t.Error("Issue() returned identical tokens for different session IDs")
	}
}

// =========================================================================
// VALIDATE TESTS
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	sessionID := "cs2kq1p0abc"

	token, _, err := ts.Issue(sessionID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != sessionID {
		t.Errorf("Validate() sessionID = %q, want %q", got, sessionID)
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _, err := ts.IssueWithDuration("session-123", -1*time.Second)
	if err != nil {
		t.Fatalf("IssueWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Validate() error = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _, _ := ts.Issue("session-123")

	// Change the end of the signature to simulate tampering.
	tampered := token[:len(token)-3] + "xxx"

	if _, err := ts.Validate(tampered); err == nil {
		t.Fatal("Validate() should return an error for a tampered token")
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService([]byte("correct-secret-32-chars-long!!!!"), time.Minute)
	ts2, _ := NewTokenService([]byte("wrong-secret-32-chars-long!!!!!!"), time.Minute)

	token, _, _ := ts1.Issue("session-123")

	if _, err := ts2.Validate(token); err == nil {
		t.Fatal("Validate() should fail when using a different secret")
	}
}

func TestValidate_WrongIssuer(t *testing.T) {
	ts := newTestTokenService(t)

	// Same secret, different issuer: e.g. another service sharing the key.
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "session-123",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := foreign.SignedString(ts.secret)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := ts.Validate(signed); err == nil {
		t.Fatal("Validate() should reject tokens from another issuer")
	}
}

func TestValidate_NoneAlgorithm(t *testing.T) {
	ts := newTestTokenService(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "session-123",
		Issuer:    Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	if _, err := ts.Validate(signed); err == nil {
		t.Fatal(`Validate() must reject "alg: none" tokens`)
	}
}

func TestValidate_EmptyToken(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Validate(""); err == nil {
		t.Fatal("Validate() should return an error for an empty string")
	}
}

func TestValidate_GarbageString(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Validate("not.a.jwt.token"); err == nil {
		t.Fatal("Validate() should return an error for a garbage string")
	}
}
