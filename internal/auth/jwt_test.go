package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"alumnet/engagement-service/internal/lifecycle"
)

func TestIssueParse_RoundTrip(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	want := lifecycle.Caller{Role: lifecycle.RoleStudent, ProfileID: 42}

	tok, err := iss.Issue(want)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := iss.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != want {
		t.Errorf("Parse = %+v, want %+v", got, want)
	}
}

func TestIssue_RequiresProfile(t *testing.T) {
	if _, err := NewIssuer("secret", time.Hour).Issue(lifecycle.Caller{Role: lifecycle.RoleAlumnus}); err == nil {
		t.Error("Issue without profile id expected error, got nil")
	}
}

func TestParse_Expired(t *testing.T) {
	iss := NewIssuer("secret", time.Minute)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return base }
	tok, err := iss.Issue(lifecycle.Caller{Role: lifecycle.RoleAlumnus, ProfileID: 1})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	iss.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := iss.Parse(tok); err == nil {
		t.Error("Parse of expired token expected error, got nil")
	}
}

func TestParse_WrongKey(t *testing.T) {
	tok, _ := NewIssuer("one", time.Hour).Issue(lifecycle.Caller{Role: lifecycle.RoleStudent, ProfileID: 1})
	if _, err := NewIssuer("two", time.Hour).Parse(tok); err == nil {
		t.Error("Parse with wrong key expected error, got nil")
	}
}

func TestParse_RejectsBadClaims(t *testing.T) {
	key := []byte("secret")
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))
	sign := func(c Claims, m jwt.SigningMethod) string {
		tok, err := jwt.NewWithClaims(m, c).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return tok
	}

	cases := map[string]string{
		"unknown role":  sign(Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: exp}}, jwt.SigningMethodHS256),
		"bad subject":   sign(Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{Subject: "abc", ExpiresAt: exp}}, jwt.SigningMethodHS256),
		"no expiry":     sign(Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{Subject: "1"}}, jwt.SigningMethodHS256),
		"other alg":     sign(Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ExpiresAt: exp}}, jwt.SigningMethodHS512),
		"not a token":   "garbage",
		"empty payload": strings.Repeat(".", 2),
	}
	iss := NewIssuer(string(key), time.Hour)
	for name, tok := range cases {
		if _, err := iss.Parse(tok); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}
