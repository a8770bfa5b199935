// Package signer holds the asymmetric key used to sign outgoing SBD
// message events and produces RS256 JWTs from a claim set.
//
// No repository in the retrieval pack touches JWT or RSA key signing,
// so this package reaches past the pack for the one ecosystem library
// that does (golang-jwt/jwt/v5); the key material itself stays on the
// standard library (crypto/rsa, crypto/x509, encoding/pem), which is
// what that JWT library itself expects callers to produce.
package signer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// minGeneratedKeyBits is the bit size used when no key is supplied and
// one must be generated.
const minGeneratedKeyBits = 4096

const passphraseAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
const passphraseLength = 8

// Rand is the minimal randomness surface Signer needs to generate a
// passphrase; it is satisfied by *rand.Rand and lets callers inject a
// deterministic source in tests. RSA key generation itself always uses
// crypto/rand.Reader, never this source — key material must never be
// predictable even under a test harness.
type Rand interface {
	Intn(n int) int
}

// KeyDetails describes a signing key: its PEM-encoded forms and,
// when one was generated rather than loaded, the passphrase protecting
// the private key. Published once via the signer-key-generated event
// when the key was auto-generated.
type KeyDetails struct {
	PublicKeyPEM  string
	PrivateKeyPEM string
	Passphrase    string
	Generated     bool
}

// Signer holds one RSA private key for the lifetime of an emulator
// instance. It is immutable after construction and safe for concurrent
// use by multiple goroutines (signing only reads the key).
type Signer struct {
	key        *rsa.PrivateKey
	passphrase string
	details    KeyDetails
}

// Load reads a PEM-encoded RSA private key from path. passphrase may be
// empty if the key is not encrypted.
func Load(path, passphrase string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signer: read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("signer: %s contains no PEM block", path)
	}

	der := block.Bytes
	//nolint:staticcheck // interoperating with legacy PEM-encrypted keys is a deliberate design choice, see DESIGN.md
	if x509.IsEncryptedPEMBlock(block) {
		der, err = x509.DecryptPEMBlock(block, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("signer: decrypt key: %w", err)
		}
	}

	key, err := parsePrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("signer: parse key: %w", err)
	}

	return &Signer{
		key:        key,
		passphrase: passphrase,
		details:    KeyDetails{PrivateKeyPEM: string(data), Generated: false},
	}, nil
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not an RSA private key")
	}
	return rsaKey, nil
}

// Generate creates a fresh RSA keypair, a random passphrase drawn from
// rnd, and PEM-encodes the private key under that passphrase. The
// returned Signer's Details().Generated is true, signalling the caller
// to publish a signer-key-generated event exactly once.
func Generate(rnd Rand) (*Signer, error) {
	key, err := rsa.GenerateKey(rand.Reader, minGeneratedKeyBits)
	if err != nil {
		return nil, fmt.Errorf("signer: generate key: %w", err)
	}
	passphrase := randomPassphrase(rnd)

	privDER := x509.MarshalPKCS1PrivateKey(key)
	//nolint:staticcheck // see Load: legacy PEM encryption is acceptable for a self-issued, self-distributed demo key
	encBlock, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY", privDER, []byte(passphrase), x509.PEMCipherAES256)
	if err != nil {
		return nil, fmt.Errorf("signer: encrypt key: %w", err)
	}
	privPEM := pem.EncodeToMemory(encBlock)

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("signer: marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return &Signer{
		key:        key,
		passphrase: passphrase,
		details: KeyDetails{
			PublicKeyPEM:  string(pubPEM),
			PrivateKeyPEM: string(privPEM),
			Passphrase:    passphrase,
			Generated:     true,
		},
	}, nil
}

func randomPassphrase(rnd Rand) string {
	out := make([]byte, passphraseLength)
	for i := range out {
		out[i] = passphraseAlphabet[rnd.Intn(len(passphraseAlphabet))]
	}
	return string(out)
}

// Details returns the key material/passphrase to publish via the
// signer-key-generated event. Safe to call regardless of whether the
// key was loaded or generated; callers check Generated before
// publishing.
func (s *Signer) Details() KeyDetails { return s.details }

// Sign produces a compact RS256 JWS of claims, with issuer fixed to
// "Rock7".
func (s *Signer) Sign(claims map[string]any) (string, error) {
	mapClaims := jwt.MapClaims{"iss": "Rock7"}
	for k, v := range claims {
		mapClaims[k] = v
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, mapClaims)
	return token.SignedString(s.key)
}

// PublicKey returns the RSA public key, e.g. for a test harness that
// wants to verify an emitted JWT.
func (s *Signer) PublicKey() *rsa.PublicKey { return &s.key.PublicKey }

// ModulusBitLen reports the RSA key size in bits, e.g. for a test
// asserting the >=4096-bit invariant on a generated key.
func (s *Signer) ModulusBitLen() int { return s.key.N.BitLen() }
