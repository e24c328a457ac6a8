package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"boxoffice/internal/identity"
	"boxoffice/internal/invite/handler/mocks"
	"boxoffice/internal/invite/models"
	"boxoffice/internal/invite/service"
	"boxoffice/internal/platform/logger"
	id "boxoffice/pkg/domain"
	dErrors "boxoffice/pkg/domain-errors"
	"boxoffice/pkg/platform/httputil"
	"boxoffice/pkg/requestcontext"
)

type InviteHandlerSuite struct {
	suite.Suite
	redeemer *mocks.MockRedeemer
	issuer   *mocks.MockIssuer
	router   chi.Router
	caller   requestcontext.VerifiedPrincipal
}

func TestInviteHandlerSuite(t *testing.T) {
	suite.Run(t, new(InviteHandlerSuite))
}

func (s *InviteHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.redeemer = mocks.NewMockRedeemer(ctrl)
	s.issuer = mocks.NewMockIssuer(ctrl)
	s.router = chi.NewRouter()
	New(s.redeemer, s.issuer, httputil.Responder{}, logger.Discard()).Register(s.router)
	s.caller = requestcontext.VerifiedPrincipal{
		Subject: id.AccountID(uuid.New()),
		Email:   "org@example.com",
		Roles:   []string{"ORGANIZER"},
	}
}

func (s *InviteHandlerSuite) do(method, path, body string, authenticated bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authenticated {
		req = req.WithContext(requestcontext.WithPrincipal(req.Context(), s.caller))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *InviteHandlerSuite) errorBody(w *httptest.ResponseRecorder) httputil.ErrorBody {
	var body httputil.ErrorBody
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	return body
}

func (s *InviteHandlerSuite) TestRedeem() {
	s.Run("returns granted role and refreshed role set", func() {
		eventID := id.EventID(uuid.New())
		s.redeemer.EXPECT().Redeem(gomock.Any(), s.caller.Subject, "abcd efgh jkmn").Return(&models.RedemptionResult{
			Role:      identity.RoleStaff,
			EventID:   &eventID,
			EventName: "Spring Gala",
			Roles:     []identity.Role{identity.RoleAttendee, identity.RoleStaff},
		}, nil)

		w := s.do(http.MethodPost, "/api/invites/redeem", `{"code":"abcd efgh jkmn"}`, true)

		s.Require().Equal(http.StatusOK, w.Code)
		var body RedeemResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
		s.Equal(identity.RoleStaff, body.Role)
		s.Equal("Spring Gala", body.EventName)
		s.Equal([]identity.Role{identity.RoleAttendee, identity.RoleStaff}, body.Roles)
	})

	s.Run("already redeemed carries the reason", func() {
		s.redeemer.EXPECT().Redeem(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.NewInvite(dErrors.InviteAlreadyRedeemed, "invite code was already redeemed"))

		w := s.do(http.MethodPost, "/api/invites/redeem", `{"code":"ABCD-EFGH-JKMN"}`, true)

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("already_redeemed", s.errorBody(w).Reason)
	})

	s.Run("empty code never reaches the service", func() {
		w := s.do(http.MethodPost, "/api/invites/redeem", `{"code":"  "}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("missing principal is unauthorized", func() {
		w := s.do(http.MethodPost, "/api/invites/redeem", `{"code":"ABCD-EFGH-JKMN"}`, false)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}

func (s *InviteHandlerSuite) TestIssue() {
	s.Run("passes typed roles and event scope", func() {
		eventID := id.EventID(uuid.New())
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		s.issuer.EXPECT().Issue(gomock.Any(), s.caller.Subject, []identity.Role{identity.RoleOrganizer}, service.GenerateRequest{
			Role:     identity.RoleStaff,
			EventID:  &eventID,
			TTLHours: 24,
		}).Return(&models.InviteCode{
			ID:            id.NewInviteCodeID(),
			Code:          "ABCD-EFGH-JKMN",
			Role:          identity.RoleStaff,
			TargetEventID: &eventID,
			Status:        models.StatusPending,
			CreatedBy:     s.caller.Subject,
			CreatedAt:     now,
			ExpiresAt:     now.Add(24 * time.Hour),
		}, nil)

		w := s.do(http.MethodPost, "/api/invites", `{"role":"staff","event_id":"`+eventID.String()+`","ttl_hours":24}`, true)

		s.Require().Equal(http.StatusCreated, w.Code)
		var body InviteResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
		s.Equal("ABCD-EFGH-JKMN", body.Code)
		s.Equal(models.StatusPending, body.Status)
		s.Equal(eventID, *body.EventID)
	})

	s.Run("unknown role is rejected before the service", func() {
		w := s.do(http.MethodPost, "/api/invites", `{"role":"superuser"}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("policy denial is forbidden", func() {
		s.issuer.EXPECT().Issue(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "not allowed to issue ADMIN invites"))

		w := s.do(http.MethodPost, "/api/invites", `{"role":"ADMIN"}`, true)
		s.Equal(http.StatusForbidden, w.Code)
	})
}

func (s *InviteHandlerSuite) TestListMine() {
	s.issuer.EXPECT().ListMine(gomock.Any(), s.caller.Subject, id.PageRequest{Page: 1, Size: 5}).
		Return(id.Page[*models.InviteCode]{
			Items: []*models.InviteCode{{
				ID:        id.NewInviteCodeID(),
				Code:      "ABCD-EFGH-JKMN",
				Status:    models.StatusExpired,
				CreatedBy: s.caller.Subject,
			}},
			Total: 6,
			Page:  1,
			Size:  5,
		}, nil)

	w := s.do(http.MethodGet, "/api/invites?page=1&size=5", "", true)

	s.Require().Equal(http.StatusOK, w.Code)
	var body ListResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	s.Equal(6, body.Total)
	s.Require().Len(body.Items, 1)
	s.Equal(models.StatusExpired, body.Items[0].Status)
	s.Equal(s.caller.Subject, body.Items[0].CreatedBy)
}

func (s *InviteHandlerSuite) TestRevoke() {
	s.Run("revokes by id", func() {
		codeID := id.NewInviteCodeID()
		s.issuer.EXPECT().Revoke(gomock.Any(), s.caller.Subject, gomock.Any(), codeID, "sent to wrong address").
			Return(&models.InviteCode{
				ID:            codeID,
				Status:        models.StatusRevoked,
				CreatedBy:     s.caller.Subject,
				RevokedReason: "sent to wrong address",
			}, nil)

		w := s.do(http.MethodPost, "/api/invites/"+codeID.String()+"/revoke", `{"reason":"sent to wrong address"}`, true)

		s.Require().Equal(http.StatusOK, w.Code)
		var body InviteResponse
		s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
		s.Equal(models.StatusRevoked, body.Status)
		s.Equal(s.caller.Subject, body.CreatedBy)
	})

	s.Run("malformed id", func() {
		w := s.do(http.MethodPost, "/api/invites/not-a-uuid/revoke", `{}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("terminal code is not revocable", func() {
		s.issuer.EXPECT().Revoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.NewInvite(dErrors.InviteNotPending, "only PENDING invite codes can be revoked; code is REDEEMED"))

		w := s.do(http.MethodPost, "/api/invites/"+id.NewInviteCodeID().String()+"/revoke", `{}`, true)
		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("not_pending", s.errorBody(w).Reason)
	})
}
