package service

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/helixbytes/contact-api/internal/config"
)

// Attestation enforcement modes. In soft mode a missing token is allowed
// through (and logged by the caller); in strict mode it is rejected. A token
// that is present but fails verification is rejected in both modes.
const (
	AppCheckModeSoft   = "soft"
	AppCheckModeStrict = "strict"
)

// AppCheckVerifier verifies the attestation token proving a request comes
// from the legitimate client app.
type AppCheckVerifier interface {
	Verify(ctx context.Context, token string) error
}

// NoopAppCheckVerifier accepts every token. Used when attestation is disabled.
type NoopAppCheckVerifier struct{}

func (v *NoopAppCheckVerifier) Verify(ctx context.Context, token string) error {
	return nil
}

// AppCheckService verifies Firebase App Check tokens: RS256 JWTs validated
// against the App Check JWKS endpoint, with issuer and audience checks bound
// to the configured project number.
type AppCheckService struct {
	cfg        config.AppCheckConfig
	httpClient *http.Client
	jwksMu     sync.RWMutex
	jwksKeys   map[string]*rsa.PublicKey
	jwksExpiry time.Time
}

func NewAppCheckService(cfg config.AppCheckConfig) (*AppCheckService, error) {
	if strings.TrimSpace(cfg.ProjectNumber) == "" {
		return nil, fmt.Errorf("app check project number is required")
	}
	if strings.TrimSpace(cfg.JWKSURL) == "" {
		cfg.JWKSURL = "https://firebaseappcheck.googleapis.com/v1/jwks"
	}
	return &AppCheckService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (s *AppCheckService) Verify(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrAttestationTokenMissing
	}

	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrAttestationFailed)
		}
		return s.getPublicKey(ctx, strings.TrimSpace(kid))
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAttestationFailed, err)
	}
	if parsed == nil || !parsed.Valid {
		return fmt.Errorf("%w: invalid token", ErrAttestationFailed)
	}

	expectedIssuer := "https://firebaseappcheck.googleapis.com/" + s.cfg.ProjectNumber
	if claims.Issuer != expectedIssuer {
		return fmt.Errorf("%w: invalid issuer", ErrAttestationFailed)
	}

	expectedAudience := "projects/" + s.cfg.ProjectNumber
	audMatched := false
	for _, aud := range claims.Audience {
		if aud == expectedAudience {
			audMatched = true
			break
		}
	}
	if !audMatched {
		return fmt.Errorf("%w: audience mismatch", ErrAttestationFailed)
	}

	return nil
}

type appCheckJWKSet struct {
	Keys []appCheckJWK `json:"keys"`
}

type appCheckJWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (s *AppCheckService) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := time.Now()
	s.jwksMu.RLock()
	if key, ok := s.jwksKeys[kid]; ok && now.Before(s.jwksExpiry) {
		s.jwksMu.RUnlock()
		return key, nil
	}
	s.jwksMu.RUnlock()

	if err := s.refreshJWKS(ctx); err != nil {
		return nil, err
	}

	s.jwksMu.RLock()
	defer s.jwksMu.RUnlock()
	key, ok := s.jwksKeys[kid]
	if !ok || key == nil {
		return nil, fmt.Errorf("%w: jwks key not found", ErrAttestationFailed)
	}
	return key, nil
}

func (s *AppCheckService) refreshJWKS(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.JWKSURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create jwks request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to fetch jwks: %v", ErrAttestationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: jwks status=%d body=%s", ErrAttestationFailed, resp.StatusCode, string(body))
	}

	var set appCheckJWKSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("failed to decode jwks response: %w", err)
	}
	if len(set.Keys) == 0 {
		return fmt.Errorf("%w: empty jwks response", ErrAttestationFailed)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if strings.TrimSpace(jwk.Kid) == "" {
			continue
		}
		if jwk.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAPublicKey(jwk)
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: no usable rsa keys in jwks", ErrAttestationFailed)
	}

	s.jwksMu.Lock()
	s.jwksKeys = keys
	s.jwksExpiry = time.Now().Add(time.Hour)
	s.jwksMu.Unlock()

	return nil
}

func parseRSAPublicKey(jwk appCheckJWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}

	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	if e <= 0 {
		return nil, fmt.Errorf("invalid exponent value")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
