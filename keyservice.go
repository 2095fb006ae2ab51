package mockauth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"

	"crypto/rsa"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/mockauth/internal/crypto"
)

// ErrInvalidToken is the single verification failure returned to callers.
// Expired, malformed and badly signed tokens all collapse into it so the
// failure mode leaks nothing about the cause.
var ErrInvalidToken = errors.New("invalid token")

// JSONWebKey represents a public key in JWK format.
type JSONWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JSONWebKeySet is the document served at /.well-known/jwks.json.
type JSONWebKeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

// KeyService owns the server's RSA signing keypair. It signs and verifies
// compact JWTs and exports the public half as a JWK with a deterministic kid.
type KeyService struct {
	mu    sync.RWMutex
	key   *rsa.PrivateKey
	keyID string
	alg   string
	// allowedAlgs is the verification allow-list; tokens signed with any
	// other algorithm are rejected outright (algorithm-confusion guard).
	allowedAlgs []string
}

// NewKeyService creates a KeyService around an existing private key.
func NewKeyService(key *rsa.PrivateKey, signingAlg string) (*KeyService, error) {
	if method := jwt.GetSigningMethod(signingAlg); method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", signingAlg)
	} else if _, ok := method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("signing algorithm %q is not an RSA algorithm", signingAlg)
	}

	kid, err := crypto.KeyID(&key.PublicKey)
	if err != nil {
		return nil, err
	}

	return &KeyService{
		key:         key,
		keyID:       kid,
		alg:         signingAlg,
		allowedAlgs: []string{signingAlg},
	}, nil
}

// LoadOrCreateKeyService builds a KeyService from the PEM file at keyFile.
// When the file does not exist a fresh 2048-bit key is generated and
// persisted there exactly once; an empty path keeps the key in memory only.
func LoadOrCreateKeyService(keyFile, signingAlg string) (*KeyService, error) {
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		switch {
		case err == nil:
			key, perr := crypto.ParsePrivateKeyPEM(data)
			if perr != nil {
				return nil, fmt.Errorf("failed to parse signing key %s: %w", keyFile, perr)
			}
			log.Info().Str("key_file", keyFile).Msg("Loaded signing key")
			return NewKeyService(key, signingAlg)
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read signing key %s: %w", keyFile, err)
		}
	}

	key, err := crypto.GenerateRSAKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	if keyFile != "" {
		if err := os.WriteFile(keyFile, crypto.EncodePrivateKeyPEM(key), 0o600); err != nil {
			return nil, fmt.Errorf("failed to persist signing key: %w", err)
		}
		log.Info().Str("key_file", keyFile).Msg("Generated and persisted new signing key")
	} else {
		log.Info().Msg("Generated ephemeral signing key")
	}

	return NewKeyService(key, signingAlg)
}

// KeyID returns the deterministic identifier of the current public key.
func (s *KeyService) KeyID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keyID
}

// Sign signs the claims with the service key and returns a compact JWT with
// header {alg, typ:"JWT", kid}.
func (s *KeyService) Sign(claims jwt.Claims) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.GetSigningMethod(s.alg), claims)
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a compact JWT against the service key and the
// algorithm allow-list. It returns the claims on success and ErrInvalidToken
// on any failure.
func (s *KeyService) Verify(tokenString string) (jwt.MapClaims, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return &s.key.PublicKey, nil
	}, jwt.WithValidMethods(s.allowedAlgs))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// PublicJWK exports the public key in JWK format.
func (s *KeyService) PublicJWK() JSONWebKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	publicKey := &s.key.PublicKey

	return JSONWebKey{
		Kid: s.keyID,
		Kty: "RSA",
		Alg: s.alg,
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
	}
}

// JWKS returns the full key set document.
func (s *KeyService) JWKS() JSONWebKeySet {
	return JSONWebKeySet{Keys: []JSONWebKey{s.PublicJWK()}}
}
