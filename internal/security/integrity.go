// Package security provides optional cryptographic signing of API
// responses so downstream consumers can verify yield data was not
// tampered with in transit.
package security

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// SignedPayload wraps a response body with its signature material.
type SignedPayload struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
	PublicKey string          `json:"public_key"`
	SignedAt  int64           `json:"signed_at"`
}

// IntegrityService signs response payloads with a secp256k1 key generated
// at startup. The key is ephemeral; consumers pin the public key exposed
// alongside each signature.
type IntegrityService struct {
	privateKey *ecdsa.PrivateKey
	publicKey  string
}

// NewIntegrityService generates a fresh signing key.
func NewIntegrityService() (*IntegrityService, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	publicKey := hex.EncodeToString(crypto.FromECDSAPub(&privateKey.PublicKey))
	logrus.Infof("Data integrity service initialized with public key: %s...", publicKey[:16])

	return &IntegrityService{
		privateKey: privateKey,
		publicKey:  publicKey,
	}, nil
}

// PublicKey returns the hex-encoded public signing key.
func (s *IntegrityService) PublicKey() string {
	return s.publicKey
}

// Sign marshals the payload, hashes it with Keccak-256 and wraps it with
// the signature.
func (s *IntegrityService) Sign(payload interface{}) (*SignedPayload, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	digest := crypto.Keccak256(raw)
	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign payload: %w", err)
	}

	return &SignedPayload{
		Payload:   raw,
		Signature: hex.EncodeToString(signature),
		PublicKey: s.publicKey,
		SignedAt:  time.Now().Unix(),
	}, nil
}

// Verify checks a signed payload against its embedded public key.
func Verify(sp *SignedPayload) (bool, error) {
	signature, err := hex.DecodeString(sp.Signature)
	if err != nil {
		return false, fmt.Errorf("malformed signature: %w", err)
	}
	publicKey, err := hex.DecodeString(sp.PublicKey)
	if err != nil {
		return false, fmt.Errorf("malformed public key: %w", err)
	}
	if len(signature) != crypto.SignatureLength {
		return false, fmt.Errorf("unexpected signature length: %d", len(signature))
	}

	digest := crypto.Keccak256(sp.Payload)
	// Drop the recovery id; VerifySignature expects 64 bytes.
	return crypto.VerifySignature(publicKey, digest, signature[:64]), nil
}
