package service_test

import (
	"github.com/google/uuid"

	"boxoffice/internal/authz"
	eventmodels "boxoffice/internal/event/models"
	"boxoffice/internal/identity"
	"boxoffice/internal/invite/service"
	"boxoffice/internal/platform/logger"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
)

func (s *ServiceSuite) issuer() *service.Issuer {
	engine := authz.New(s.reader, s.events, authz.WithLogger(logger.Discard()))
	return service.NewIssuer(s.service, engine)
}

func (s *ServiceSuite) TestIssuerPolicy() {
	issuer := s.issuer()
	ctx := s.ctx()
	admin := s.newUser("admin@example.com")
	other := s.newUser("other-organizer@example.com")
	foreign, err := eventmodels.NewEvent(id.EventID(uuid.New()), "Someone Else's Gig", other, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.events.Create(ctx, foreign))

	organizerRoles := []identity.Role{identity.RoleOrganizer}

	_, err = issuer.Issue(ctx, admin, []identity.Role{identity.RoleAdmin}, service.GenerateRequest{Role: identity.RoleAdmin})
	s.NoError(err)

	_, err = issuer.Issue(ctx, s.organizer, organizerRoles, service.GenerateRequest{Role: identity.RoleStaff, EventID: &s.event.ID})
	s.NoError(err)

	_, err = issuer.Issue(ctx, s.organizer, organizerRoles, service.GenerateRequest{Role: identity.RoleStaff, EventID: &foreign.ID})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = issuer.Issue(ctx, s.organizer, organizerRoles, service.GenerateRequest{Role: identity.RoleAdmin})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	attendee := s.newUser("fan@example.com")
	_, err = issuer.Issue(ctx, attendee, []identity.Role{identity.RoleAttendee}, service.GenerateRequest{Role: identity.RoleAttendee})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestIssuerRevokeRequiresCreatorOrAdmin() {
	issuer := s.issuer()
	c := s.staffCode(1)
	stranger := s.newUser("stranger@example.com")
	admin := s.newUser("admin@example.com")

	_, err := issuer.Revoke(s.ctx(), stranger, []identity.Role{identity.RoleOrganizer}, c.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = issuer.Revoke(s.ctx(), admin, []identity.Role{identity.RoleAdmin}, c.ID, "cleanup")
	s.NoError(err)
}
