package order

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
)

// Signer signs canonical order payloads with an Ed25519 key. The key pair
// is generated out of band; only the private half is loaded here.
type Signer struct {
	key ed25519.PrivateKey
}

// NewSigner wraps an in-memory private key.
func NewSigner(key ed25519.PrivateKey) *Signer {
	return &Signer{key: key}
}

// LoadSigner reads a PKCS#8 PEM private key file.
func LoadSigner(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not an Ed25519 private key")
	}
	return &Signer{key: edKey}, nil
}

// Sign returns the signature of the payload, base64 url-safe so it embeds
// in a query string without escaping.
func (s *Signer) Sign(payload string) string {
	return base64.URLEncoding.EncodeToString(ed25519.Sign(s.key, []byte(payload)))
}

// SignedQuery appends the signature to the canonical query string.
func (s *Signer) SignedQuery(r Request) string {
	query := r.QueryString()
	return query + "&signature=" + s.Sign(query)
}

// Public returns the verification half of the key.
func (s *Signer) Public() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}
