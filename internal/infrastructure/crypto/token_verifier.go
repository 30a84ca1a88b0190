// Package crypto verifies bearer tokens issued by the identity broker.
package crypto

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ronl/business-api/internal/domain/models"
	"github.com/ronl/business-api/internal/infrastructure/jwks"
)

// FailureKind classifies why a token was rejected. Clients always see
// INVALID_TOKEN; the kind is for logs and metrics.
type FailureKind string

const (
	KindMalformedToken        FailureKind = "malformed_token"
	KindUnknownSigningKey     FailureKind = "unknown_signing_key"
	KindInvalidSignature      FailureKind = "invalid_signature"
	KindClaimValidationFailed FailureKind = "claim_validation_failed"
)

// VerificationError is returned for every rejected token.
type VerificationError struct {
	Kind FailureKind
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// KindOf returns the failure kind of err, or "" if err is not a VerificationError.
func KindOf(err error) FailureKind {
	var ve *VerificationError
	if stderrors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

var (
	errMissingKeyID    = stderrors.New("token header has no kid")
	errKeyResolution   = stderrors.New("signing key resolution failed")
	errKeyAlgMismatch  = stderrors.New("published key is bound to a different algorithm")
	errUnsupportedAlgo = stderrors.New("algorithm is not an asymmetric signing algorithm")
)

// KeyResolver resolves a key id to a public key.
type KeyResolver interface {
	Get(ctx context.Context, kid string) (*jwks.SigningKey, error)
}

// VerifierConfig pins what a valid token looks like.
type VerifierConfig struct {
	Issuer    string
	Audience  string
	Algorithm string
	ClockSkew time.Duration
}

// TokenVerifier validates signature, issuer, audience and validity window of
// bearer tokens against the broker's published keys.
type TokenVerifier struct {
	keys   KeyResolver
	cfg    VerifierConfig
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenVerifier creates a verifier. Only RSA, RSA-PSS and ECDSA algorithms
// can be pinned.
func NewTokenVerifier(cfg VerifierConfig, keys KeyResolver) (*TokenVerifier, error) {
	switch jwt.GetSigningMethod(cfg.Algorithm).(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA:
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedAlgo, cfg.Algorithm)
	}

	v := &TokenVerifier{keys: keys, cfg: cfg, now: time.Now}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{cfg.Algorithm}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v, nil
}

// Verify validates raw and returns the authenticated user it describes.
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (*models.AuthenticatedUser, error) {
	claims := &PortalClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return v.resolveKey(ctx, token)
	})
	if err != nil {
		return nil, &VerificationError{Kind: classify(err), Err: err}
	}

	user, err := claims.AuthenticatedUser()
	if err != nil {
		return nil, &VerificationError{Kind: KindClaimValidationFailed, Err: err}
	}
	return user, nil
}

func (v *TokenVerifier) resolveKey(ctx context.Context, token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, errMissingKeyID
	}
	key, err := v.keys.Get(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("%w: kid %q: %w", errKeyResolution, kid, err)
	}
	if key.Algorithm != "" && key.Algorithm != v.cfg.Algorithm {
		return nil, fmt.Errorf("%w: kid %q is %s", errKeyAlgMismatch, kid, key.Algorithm)
	}
	return key.Public, nil
}

func classify(err error) FailureKind {
	switch {
	case stderrors.Is(err, errMissingKeyID), stderrors.Is(err, jwt.ErrTokenMalformed):
		return KindMalformedToken
	case stderrors.Is(err, errKeyResolution):
		return KindUnknownSigningKey
	case stderrors.Is(err, errKeyAlgMismatch), stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
		return KindInvalidSignature
	case stderrors.Is(err, jwt.ErrTokenUnverifiable):
		return KindMalformedToken
	default:
		return KindClaimValidationFailed
	}
}
