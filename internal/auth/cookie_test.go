package auth

import (
	"testing"
	"time"
)

func TestBrowserTokenRoundTrip(t *testing.T) {
	token, err := NewBrowserToken("secret", "issuer", time.Minute, CookieClaims{
		UserID: "u-1",
		Role:   "secretariat",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseBrowserToken("secret", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.UserID != "u-1" || claims.Role != "secretariat" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestBrowserTokenWrongSecret(t *testing.T) {
	token, err := NewBrowserToken("secret", "issuer", time.Minute, CookieClaims{UserID: "u-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseBrowserToken("other", token); err == nil {
		t.Fatalf("expected signature rejection")
	}
}

func TestBrowserTokenExpired(t *testing.T) {
	token, err := NewBrowserToken("secret", "issuer", -time.Minute, CookieClaims{UserID: "u-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseBrowserToken("secret", token); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestNewCookieSecret(t *testing.T) {
	first, err := NewCookieSecret()
	if err != nil {
		t.Fatalf("secret error: %v", err)
	}
	second, err := NewCookieSecret()
	if err != nil {
		t.Fatalf("secret error: %v", err)
	}
	if first == "" || first == second {
		t.Fatalf("expected distinct non-empty secrets")
	}
}
