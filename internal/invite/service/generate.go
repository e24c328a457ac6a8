package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"boxoffice/internal/audit"
	"boxoffice/internal/identity"
	"boxoffice/internal/invite/models"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sentinel"
	"boxoffice/pkg/requestcontext"
)

// GenerateRequest describes a code to mint. TTLHours of zero means the
// default lifetime.
type GenerateRequest struct {
	Role     identity.Role
	EventID  *id.EventID
	TTLHours int
}

// Generate mints a PENDING code. It checks structure only: who may issue
// which role is decided by Issuer.
func (s *Service) Generate(ctx context.Context, creatorID id.AccountID, req GenerateRequest) (_ *models.InviteCode, err error) {
	ctx, span := s.tracer.Start(ctx, "invite.generate")
	span.SetAttributes(attribute.String("invite.role", string(req.Role)))
	defer func() { endSpan(span, err) }()

	ttl, err := models.TTLFromHours(req.TTLHours)
	if err != nil {
		return nil, err
	}
	if err := models.CheckScope(req.Role, req.EventID); err != nil {
		return nil, err
	}
	if _, err := s.resolveAccount(ctx, creatorID); err != nil {
		return nil, err
	}
	if _, err := s.resolveEvent(ctx, req.EventID); err != nil {
		return nil, err
	}

	c, err := s.allocate(ctx, creatorID, req, ttl)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Generated.WithLabelValues(string(c.Role)).Inc()
	}
	s.logger.InfoContext(ctx, "invite code generated",
		"invite_code_id", c.ID.String(),
		"role", string(c.Role),
		"created_by", creatorID.String(),
	)
	s.record(ctx, audit.Entry{
		Action:       audit.ActionInviteCreated,
		Actor:        creatorID,
		ResourceType: "invite_code",
		ResourceID:   c.ID.String(),
		EventID:      c.TargetEventID,
		Details:      roleDetails(c) + "; expires_at=" + c.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return c, nil
}

// allocate retries on code collisions and gives up with CodeUnavailable.
func (s *Service) allocate(ctx context.Context, creatorID id.AccountID, req GenerateRequest, ttl time.Duration) (*models.InviteCode, error) {
	now := requestcontext.Now(ctx)
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		code, err := s.generator.Next()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate invite code")
		}
		c, err := models.New(code, req.Role, req.EventID, creatorID, ttl, now)
		if err != nil {
			return nil, err
		}
		err = s.store.Create(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, translate(err, "event not found", "failed to save invite code")
		}
		s.logger.DebugContext(ctx, "invite code collision", "attempt", attempt)
	}
	return nil, dErrors.New(dErrors.CodeUnavailable, "could not allocate a unique invite code, try again")
}
