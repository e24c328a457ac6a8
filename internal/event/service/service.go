// Package service exposes staff management on events to organizers.
package service

import (
	"context"
	"log/slog"

	"boxoffice/internal/event/models"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/sentinel"
)

type Store interface {
	ListStaff(ctx context.Context, eventID id.EventID) ([]models.StaffGrant, error)
	RevokeStaff(ctx context.Context, eventID id.EventID, accountID id.AccountID) (bool, error)
}

// Authorizer is satisfied by *authz.Engine.
type Authorizer interface {
	RequireOrganizer(ctx context.Context, userID id.AccountID, eventID id.EventID) (*models.Event, error)
	IsOrganizer(ctx context.Context, userID id.AccountID, eventID id.EventID) bool
	IsStaff(ctx context.Context, userID id.AccountID, eventID id.EventID) bool
}

// Access is the caller's relationship to one event.
type Access struct {
	EventID   id.EventID
	Organizer bool
	Staff     bool
}

type Service struct {
	store  Store
	authz  Authorizer
	logger *slog.Logger
}

func New(store Store, authz Authorizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, authz: authz, logger: logger}
}

// ListStaff returns staff grants for an event the caller organizes.
func (s *Service) ListStaff(ctx context.Context, caller id.AccountID, eventID id.EventID) ([]models.StaffGrant, error) {
	if _, err := s.authz.RequireOrganizer(ctx, caller, eventID); err != nil {
		return nil, err
	}
	grants, err := s.store.ListStaff(ctx, eventID)
	if err != nil {
		return nil, storeError(err, "failed to list staff")
	}
	return grants, nil
}

// RevokeStaff removes a staff grant on an event the caller organizes.
func (s *Service) RevokeStaff(ctx context.Context, caller id.AccountID, eventID id.EventID, staffID id.AccountID) error {
	if _, err := s.authz.RequireOrganizer(ctx, caller, eventID); err != nil {
		return err
	}
	removed, err := s.store.RevokeStaff(ctx, eventID, staffID)
	if err != nil {
		return storeError(err, "failed to revoke staff")
	}
	if !removed {
		return dErrors.New(dErrors.CodeNotFound, "staff grant not found")
	}
	s.logger.InfoContext(ctx, "staff access revoked",
		"event_id", eventID.String(),
		"account_id", staffID.String(),
		"revoked_by", caller.String(),
	)
	return nil
}

// AccessFor reports the caller's own access to an event.
func (s *Service) AccessFor(ctx context.Context, caller id.AccountID, eventID id.EventID) Access {
	return Access{
		EventID:   eventID,
		Organizer: s.authz.IsOrganizer(ctx, caller, eventID),
		Staff:     s.authz.IsStaff(ctx, caller, eventID),
	}
}

func storeError(err error, msg string) error {
	if sentinel.IsUnavailable(err) {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
