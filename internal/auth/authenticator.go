// Package auth validates private API calls against stored credentials.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"strconv"
	"sync"

	"kraken-sandbox-go/internal/apperr"
	"kraken-sandbox-go/internal/models"
)

const (
	ModePermissive = "permissive"
	ModeStrict     = "strict"
)

// Request carries the authentication material of one private call.
type Request struct {
	Key       string
	Signature string
	Nonce     string
	Path      string
	PostData  string
}

// Authenticator decides whether a private call may proceed.
type Authenticator interface {
	Authenticate(ctx context.Context, req Request) (models.Credential, error)
}

// CredentialLookup is the part of the store an authenticator needs.
type CredentialLookup interface {
	Lookup(ctx context.Context, key string) (models.Credential, error)
}

// New returns the authenticator for the configured mode.
func New(mode string, creds CredentialLookup) (Authenticator, error) {
	switch mode {
	case "", ModePermissive:
		return &Permissive{creds: creds}, nil
	case ModeStrict:
		return NewStrict(creds), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// Permissive checks that the key exists and that a signature and a numeric
// nonce are present. Signatures are not verified and nonces are not tracked.
type Permissive struct {
	creds CredentialLookup
}

// Authenticate resolves the credential named by req.Key.
func (p *Permissive) Authenticate(ctx context.Context, req Request) (models.Credential, error) {
	if req.Key == "" || req.Signature == "" {
		return models.Credential{}, apperr.Auth(apperr.CodeInvalidKey)
	}
	if _, err := parseNonce(req.Nonce); err != nil {
		return models.Credential{}, err
	}
	return p.creds.Lookup(ctx, req.Key)
}

// Strict verifies the HMAC-SHA512 signature and requires nonces to increase
// per key. Nonce state lives in memory and resets on restart.
type Strict struct {
	creds CredentialLookup

	mu     sync.Mutex
	nonces map[string]uint64
}

// NewStrict creates a verifier with empty nonce state.
func NewStrict(creds CredentialLookup) *Strict {
	return &Strict{creds: creds, nonces: make(map[string]uint64)}
}

func (s *Strict) Authenticate(ctx context.Context, req Request) (models.Credential, error) {
	if req.Key == "" || req.Signature == "" {
		return models.Credential{}, apperr.Auth(apperr.CodeInvalidKey)
	}
	nonce, err := parseNonce(req.Nonce)
	if err != nil {
		return models.Credential{}, err
	}
	cred, err := s.creds.Lookup(ctx, req.Key)
	if err != nil {
		return models.Credential{}, err
	}

	expected, err := Sign(req.Path, req.Nonce, req.PostData, cred.Secret)
	if err != nil {
		return models.Credential{}, err
	}
	if !hmac.Equal([]byte(expected), []byte(req.Signature)) {
		return models.Credential{}, apperr.Auth(apperr.CodeInvalidSignature)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.nonces[req.Key]; ok && nonce <= last {
		return models.Credential{}, apperr.Auth(apperr.CodeInvalidNonce)
	}
	s.nonces[req.Key] = nonce
	return cred, nil
}

// Sign computes the API-Sign header value:
// base64(HMAC-SHA512(base64dec(secret), path + SHA256(nonce + postData))).
func Sign(path, nonce, postData, secret string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to decode secret: %w", err)
	}
	sha := sha256.Sum256([]byte(nonce + postData))

	mac := hmac.New(sha512.New, key)
	mac.Write([]byte(path))
	mac.Write(sha[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func parseNonce(raw string) (uint64, error) {
	if raw == "" {
		return 0, apperr.Auth(apperr.CodeInvalidNonce)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Auth(apperr.CodeInvalidNonce)
	}
	return n, nil
}
