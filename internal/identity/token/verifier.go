// Package token verifies bearer-token envelopes from the external issuer and
// turns their claims into a verified principal.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"boxoffice/internal/identity"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/requestcontext"
)

// Config selects the verification key and the expected envelope.
// Exactly one of HMACSecret or PublicKeyPEM is used; the RSA key wins.
type Config struct {
	Issuer       string
	Audience     string
	HMACSecret   string
	PublicKeyPEM string
	ClientID     string
	Leeway       time.Duration
}

// Verifier checks signature, expiry, issuer and audience.
type Verifier struct {
	key      any
	methods  []string
	clientID string
	parser   *jwt.Parser
}

func NewVerifier(cfg Config) (*Verifier, error) {
	v := &Verifier{clientID: cfg.ClientID}

	switch {
	case cfg.PublicKeyPEM != "":
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		v.key = pub
		v.methods = []string{jwt.SigningMethodRS256.Alg(), jwt.SigningMethodRS384.Alg(), jwt.SigningMethodRS512.Alg()}
	case cfg.HMACSecret != "":
		v.key = []byte(cfg.HMACSecret)
		v.methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, errors.New("token verifier requires a key")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	v.parser = jwt.NewParser(opts...)
	return v, nil
}

// Verify implements the authentication middleware's Verifier.
func (v *Verifier) Verify(_ context.Context, raw string) (requestcontext.VerifiedPrincipal, error) {
	claims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return requestcontext.VerifiedPrincipal{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return requestcontext.VerifiedPrincipal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return requestcontext.VerifiedPrincipal{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return requestcontext.VerifiedPrincipal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid subject claim")
	}
	subject, err := id.ParseAccountID(sub)
	if err != nil {
		return requestcontext.VerifiedPrincipal{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid subject claim")
	}

	return requestcontext.VerifiedPrincipal{
		Subject:     subject,
		Email:       stringClaim(claims, "email"),
		DisplayName: firstNonEmpty(stringClaim(claims, "name"), stringClaim(claims, "preferred_username")),
		Roles:       identity.RolesFromClaims(claims, v.clientID),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Signer mints HS256 tokens shaped like the issuer's. It exists for local
// development and tests; production tokens come from the issuer.
type Signer struct {
	secret   []byte
	issuer   string
	audience string
}

func NewHMACSigner(secret, issuer, audience string) *Signer {
	return &Signer{secret: []byte(secret), issuer: issuer, audience: audience}
}

// Sign issues a token for subject carrying realm roles and an e-mail claim.
func (s *Signer) Sign(subject id.AccountID, email string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	realmRoles := make([]any, 0, len(roles))
	for _, r := range roles {
		realmRoles = append(realmRoles, r)
	}
	claims := jwt.MapClaims{
		"sub":          subject.String(),
		"email":        email,
		"iat":          now.Unix(),
		"exp":          now.Add(ttl).Unix(),
		"realm_access": map[string]any{"roles": realmRoles},
	}
	if s.issuer != "" {
		claims["iss"] = s.issuer
	}
	if s.audience != "" {
		claims["aud"] = s.audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
