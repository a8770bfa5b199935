package signer

import (
	"math/rand"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateProducesUsableKey(t *testing.T) {
	s, err := Generate(rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if s.ModulusBitLen() < 4096 {
		t.Fatalf("modulus bit length = %d, want >= 4096", s.ModulusBitLen())
	}
	details := s.Details()
	if !details.Generated {
		t.Fatalf("Details().Generated = false, want true")
	}
	if len(details.Passphrase) != passphraseLength {
		t.Fatalf("passphrase length = %d, want %d", len(details.Passphrase), passphraseLength)
	}
	if details.PublicKeyPEM == "" || details.PrivateKeyPEM == "" {
		t.Fatalf("expected non-empty PEM material")
	}
}

func TestSignProducesVerifiableRS256Token(t *testing.T) {
	s, err := Generate(rand.New(rand.NewSource(2)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	tokenStr, err := s.Sign(map[string]any{"momsn": 1, "data": "0a0b"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parsed, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return s.PublicKey(), nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("claims type = %T, want jwt.MapClaims", parsed.Claims)
	}
	if claims["iss"] != "Rock7" {
		t.Fatalf("iss = %v, want Rock7", claims["iss"])
	}
	if claims["data"] != "0a0b" {
		t.Fatalf("data = %v, want 0a0b", claims["data"])
	}
}
