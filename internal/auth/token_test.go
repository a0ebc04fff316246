package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

func TestIssueAndParse(t *testing.T) {
	iss := NewIssuer("0123456789abcdef", "durak", time.Hour)
	token, sess, err := iss.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	got, err := iss.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got.UserID != "user-1" || got.Username != "alice" || !got.ExpiresAt.Equal(sess.ExpiresAt) {
		t.Fatalf("session = %+v, want %+v", got, sess)
	}
}

func TestNewSessionGeneratesGuest(t *testing.T) {
	iss := NewIssuer("0123456789abcdef", "durak", time.Hour)
	_, a, err := iss.NewSession("")
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	_, b, _ := iss.NewSession("")
	if a.UserID == b.UserID || a.Username == "" {
		t.Fatalf("sessions not distinct: %+v %+v", a, b)
	}
}

func TestParseRejects(t *testing.T) {
	iss := NewIssuer("0123456789abcdef", "durak", time.Hour)

	expired := NewIssuer("0123456789abcdef", "durak", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := iss.Parse(old); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired token: %v", err)
	}

	other, _, _ := NewIssuer("fedcba9876543210", "durak", time.Hour).Issue("user-1", "alice")
	if _, err := iss.Parse(other); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: %v", err)
	}

	foreign, _, _ := NewIssuer("0123456789abcdef", "someone-else", time.Hour).Issue("user-1", "alice")
	if _, err := iss.Parse(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong issuer: %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "iss": "durak"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := iss.Parse(unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unsigned token: %v", err)
	}

	if _, err := iss.Parse("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: %v", err)
	}
}

func TestIssueRequiresConfig(t *testing.T) {
	if _, _, err := NewIssuer("", "durak", time.Hour).Issue("u", "n"); err == nil {
		t.Fatal("expected error for missing secret")
	}
	if _, _, err := NewIssuer("0123456789abcdef", "durak", time.Hour).Issue("", "n"); err == nil {
		t.Fatal("expected error for missing user")
	}
}
