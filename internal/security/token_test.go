package security

import (
	"testing"
	"time"
)

func TestServiceTokenRoundTrip(t *testing.T) {
	signed, errSign := SignServiceToken("secret", "billing-service", time.Minute)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}

	claims, errParse := ParseServiceToken("secret", signed)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.Subject != "billing-service" {
		t.Fatalf("subject = %q, want billing-service", claims.Subject)
	}
}

func TestServiceTokenWrongSecret(t *testing.T) {
	signed, errSign := SignServiceToken("secret", "billing-service", time.Minute)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	if _, errParse := ParseServiceToken("other-secret", signed); errParse == nil {
		t.Fatalf("expected parse failure with wrong secret")
	}
}

func TestServiceTokenExpired(t *testing.T) {
	signed, errSign := SignServiceToken("secret", "billing-service", -time.Minute)
	if errSign != nil {
		t.Fatalf("sign: %v", errSign)
	}
	if _, errParse := ParseServiceToken("secret", signed); errParse == nil {
		t.Fatalf("expected parse failure for expired token")
	}
}

func TestSignRequiresSecret(t *testing.T) {
	if _, errSign := SignServiceToken("  ", "svc", time.Minute); errSign == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestHashAndVerifyToken(t *testing.T) {
	hash, errHash := HashToken("raw-token-value")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	if !VerifyToken(hash, "raw-token-value") {
		t.Fatalf("expected matching token to verify")
	}
	if VerifyToken(hash, "some-other-token") {
		t.Fatalf("expected mismatched token to fail")
	}
}
