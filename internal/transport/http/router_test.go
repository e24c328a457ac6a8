package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"boxoffice/internal/account/gate"
	accounthandler "boxoffice/internal/account/handler"
	accountmodels "boxoffice/internal/account/models"
	accountservice "boxoffice/internal/account/service"
	accountstore "boxoffice/internal/account/store"
	"boxoffice/internal/audit"
	audithandler "boxoffice/internal/audit/handler"
	auditmemory "boxoffice/internal/audit/store/memory"
	"boxoffice/internal/authz"
	eventhandler "boxoffice/internal/event/handler"
	eventmodels "boxoffice/internal/event/models"
	eventservice "boxoffice/internal/event/service"
	eventstore "boxoffice/internal/event/store"
	"boxoffice/internal/identity"
	identitymemory "boxoffice/internal/identity/memory"
	"boxoffice/internal/identity/token"
	invitehandler "boxoffice/internal/invite/handler"
	inviteservice "boxoffice/internal/invite/service"
	invitestore "boxoffice/internal/invite/store"
	"boxoffice/internal/platform/logger"
	"boxoffice/internal/platform/metrics"
	"boxoffice/internal/registration"
	registrationhandler "boxoffice/internal/registration/handler"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/httputil"
	"boxoffice/pkg/platform/tx"
)

const (
	testSecret   = "router-test-secret"
	testIssuer   = "https://issuer.test/realms/boxoffice"
	testAudience = "boxoffice-api"
)

type RouterSuite struct {
	suite.Suite
	accounts  *accountstore.InMemoryStore
	events    *eventstore.InMemoryStore
	directory *identitymemory.Directory
	auditLog  *auditmemory.Store
	invites   *inviteservice.Service
	signer    *token.Signer
	httpm     *metrics.HTTP
	router    http.Handler
	admin     id.AccountID
	organizer id.AccountID
	event     *eventmodels.Event
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	log := logger.Discard()
	responder := httputil.Responder{}

	s.accounts = accountstore.NewInMemory()
	s.events = eventstore.NewInMemory()
	s.directory = identitymemory.New(identitymemory.WithBcryptCost(4))
	s.auditLog = auditmemory.New()
	sink := audit.NewSink(s.auditLog, audit.WithLogger(log))

	accounts := accountservice.NewAccounts(s.accounts,
		accountservice.WithLogger(log),
		accountservice.WithAuditRecorder(sink),
	)
	approvals := accountservice.NewApprovalService(accounts, s.directory)
	engine := authz.New(accounts, s.events, authz.WithLogger(log), authz.WithAuditRecorder(sink))
	s.invites = inviteservice.New(invitestore.NewInMemory(), accounts, s.events, s.directory, tx.NewMemoryRunner(),
		inviteservice.WithLogger(log),
		inviteservice.WithAuditRecorder(sink),
	)
	orchestrator := registration.New(accounts, s.invites, s.events, s.directory,
		registration.WithLogger(log),
		registration.WithAuditRecorder(sink),
	)

	verifier, err := token.NewVerifier(token.Config{Issuer: testIssuer, Audience: testAudience, HMACSecret: testSecret})
	s.Require().NoError(err)
	s.signer = token.NewHMACSigner(testSecret, testIssuer, testAudience)

	reg := prometheus.NewRegistry()
	s.httpm = metrics.NewHTTP(reg)
	stages := Pipeline(PipelineConfig{
		Verifier:    verifier,
		Provisioner: accounts,
		Gate:        gate.New(accounts, gate.WithLogger(log), gate.WithAuditRecorder(sink), gate.WithResponder(responder)),
		Anonymous:   DefaultAnonymousRoutes(),
		Metrics:     s.httpm,
		Responder:   responder,
		Logger:      log,
	})

	status := NewStatus(Info{Service: "boxoffice", Version: "test", Environment: "development"},
		map[string]Probe{"identity_directory": func(context.Context) error { return nil }}, log)

	s.router = NewRouter(RouterConfig{
		Stages: stages,
		Handlers: []Registrar{
			status,
			registrationhandler.New(orchestrator, responder, log),
			invitehandler.New(s.invites, inviteservice.NewIssuer(s.invites, engine), responder, log),
			accounthandler.New(accounts, approvals, responder, log),
			eventhandler.New(eventservice.New(s.events, engine, log), responder, log),
			audithandler.New(sink, responder, log),
		},
		Metrics:   metrics.Handler(reg),
		Responder: responder,
	})

	s.admin = s.seedAccount("admin@example.com", accountmodels.ApprovalStatusApproved)
	s.organizer = s.seedAccount("organizer@example.com", accountmodels.ApprovalStatusApproved)
	ev, err := eventmodels.NewEvent(id.EventID(uuid.New()), "Midsummer Fair", s.organizer, nil, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.events.Create(context.Background(), ev))
	s.event = ev
}

func (s *RouterSuite) seedAccount(addr string, status accountmodels.ApprovalStatus) id.AccountID {
	a := accountmodels.NewPending(id.AccountID(uuid.New()), addr, "Seed", time.Now())
	a.Status = status
	s.Require().NoError(s.accounts.Save(context.Background(), a))
	return a.ID
}

func (s *RouterSuite) bearer(subject id.AccountID, email string, roles ...string) string {
	tok, err := s.signer.Sign(subject, email, roles, time.Hour)
	s.Require().NoError(err)
	return "Bearer " + tok
}

func (s *RouterSuite) do(method, path, authHeader, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) errorCode(w *httptest.ResponseRecorder) string {
	var body httputil.ErrorBody
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	return body.Code
}

func (s *RouterSuite) TestPipelineStageOrder() {
	stages := Pipeline(PipelineConfig{
		Provisioner: accountservice.NewAccounts(s.accounts),
		Gate:        gate.New(accountservice.NewAccounts(s.accounts)),
		Metrics:     metrics.NewHTTP(prometheus.NewRegistry()),
	})
	names := make([]string, 0, len(stages))
	for _, st := range stages {
		names = append(names, st.Name)
	}
	s.Equal([]string{
		StageRecover, StageRequestID, StageMetadata, StageRequestTime,
		StageMetrics, StageAuthenticate, StageProvision, StageGate,
	}, names)

	without := Pipeline(PipelineConfig{Gate: gate.New(accountservice.NewAccounts(s.accounts))})
	for _, st := range without {
		s.NotEqual(StageProvision, st.Name)
		s.NotEqual(StageMetrics, st.Name)
	}
}

func (s *RouterSuite) TestAnonymousRoutes() {
	w := s.do(http.MethodGet, "/health", "", "")
	s.Equal(http.StatusOK, w.Code)
	s.NotEmpty(w.Header().Get("X-Request-ID"))

	w = s.do(http.MethodGet, "/api/info", "", "")
	s.Require().Equal(http.StatusOK, w.Code)
	var info Info
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&info))
	s.Equal("boxoffice", info.Service)

	w = s.do(http.MethodGet, "/metrics", "", "")
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestProtectedRoutesRequireToken() {
	w := s.do(http.MethodGet, "/api/me", "", "")
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/me", "Bearer not-a-token", "")
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/invites/redeem", "", `{"code":"ABCD-EFGH-JKMN"}`)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestPendingAccountIsBlockedWithoutSideEffects() {
	pending := s.seedAccount("pending@example.com", accountmodels.ApprovalStatusPending)
	before := len(s.auditLog.All())

	w := s.do(http.MethodPost, "/api/invites", s.bearer(pending, "pending@example.com", "ORGANIZER"),
		`{"role":"STAFF","event_id":"`+s.event.ID.String()+`"}`)

	s.Equal(http.StatusForbidden, w.Code)
	s.Equal(gate.CodePending, s.errorCode(w))
	page, err := s.invites.ListByCreator(context.Background(), pending, id.PageRequest{}.Normalize())
	s.Require().NoError(err)
	s.Zero(page.Total)

	records := s.auditLog.All()[before:]
	s.Require().Len(records, 1)
	s.Equal(audit.ActionApprovalGateViolation, records[0].Action)
}

func (s *RouterSuite) TestRejectedAccountSeesReason() {
	rejected := accountmodels.NewPending(id.AccountID(uuid.New()), "rejected@example.com", "R", time.Now())
	s.Require().NoError(rejected.Reject("duplicate organizer", time.Now()))
	s.Require().NoError(s.accounts.Save(context.Background(), rejected))

	w := s.do(http.MethodGet, "/api/me", s.bearer(rejected.ID, rejected.Email), "")

	s.Require().Equal(http.StatusForbidden, w.Code)
	var body httputil.ErrorBody
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&body))
	s.Equal(gate.CodeRejected, body.Code)
	s.Equal("duplicate organizer", body.Reason)
}

func (s *RouterSuite) TestLegacyCallerIsProvisioned() {
	subject := id.AccountID(uuid.New())

	w := s.do(http.MethodGet, "/api/me", s.bearer(subject, "legacy@example.com", "ATTENDEE"), "")

	s.Require().Equal(http.StatusOK, w.Code)
	a, err := s.accounts.Get(context.Background(), subject)
	s.Require().NoError(err)
	s.Equal(accountmodels.ApprovalStatusApproved, a.Status)
	s.Len(s.auditLog.ByAction(audit.ActionAccountProvisioned), 1)
}

func (s *RouterSuite) TestRegisterRedeemAndApprove() {
	// an organizer issues a STAFF invite for their event
	w := s.do(http.MethodPost, "/api/invites", s.bearer(s.organizer, "organizer@example.com", "ORGANIZER"),
		`{"role":"STAFF","event_id":"`+s.event.ID.String()+`"}`)
	s.Require().Equal(http.StatusCreated, w.Code)
	var invite invitehandler.InviteResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&invite))

	// anonymous registration
	w = s.do(http.MethodPost, "/api/auth/register", "", `{"email":"new@example.com","password":"correct-horse"}`)
	s.Require().Equal(http.StatusCreated, w.Code)
	var reg registration.Result
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&reg))
	s.Equal(accountmodels.ApprovalStatusPending, reg.Status)
	newcomer := s.bearer(reg.AccountID, "new@example.com")

	// PENDING: gated, but redemption is allowed
	w = s.do(http.MethodGet, "/api/me", newcomer, "")
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/invites/redeem", newcomer, `{"code":"`+strings.ToLower(invite.Code)+`"}`)
	s.Require().Equal(http.StatusOK, w.Code)
	var redeemed invitehandler.RedeemResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&redeemed))
	s.Equal(identity.RoleStaff, redeemed.Role)
	s.Equal(s.event.Name, redeemed.EventName)

	// still gated on other routes until approved
	w = s.do(http.MethodGet, "/api/events/"+s.event.ID.String()+"/access", newcomer, "")
	s.Equal(http.StatusForbidden, w.Code)

	adminToken := s.bearer(s.admin, "admin@example.com", "ADMIN")
	w = s.do(http.MethodPost, "/api/admin/accounts/"+reg.AccountID.String()+"/approve", adminToken, "")
	s.Require().Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/events/"+s.event.ID.String()+"/access", newcomer, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var access eventhandler.AccessResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&access))
	s.True(access.Staff)

	w = s.do(http.MethodGet, "/api/admin/audit?action=INVITE_REDEEMED", adminToken, "")
	s.Require().Equal(http.StatusOK, w.Code)
	var trail audithandler.ListResponse
	s.Require().NoError(json.NewDecoder(w.Body).Decode(&trail))
	s.Len(trail.Records, 1)
}

func (s *RouterSuite) TestMetricsUseRoutePattern() {
	s.do(http.MethodGet, "/api/events/"+s.event.ID.String()+"/access", s.bearer(s.organizer, "organizer@example.com"), "")

	s.Equal(1.0, testutil.ToFloat64(s.httpm.Requests.WithLabelValues("/api/events/{eventID}/access", http.MethodGet, "200")))
}

func (s *RouterSuite) TestUnknownRouteIsJSON404() {
	w := s.do(http.MethodGet, "/api/nope", "", "")
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("application/json", w.Header().Get("Content-Type"))
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	r := chi.NewRouter()
	r.Use(recoverer(httputil.Responder{}, logger.Discard()))
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestHealthReportsFailingProbe(t *testing.T) {
	status := NewStatus(Info{}, map[string]Probe{
		"database": func(context.Context) error { return errors.New("dial tcp: refused") },
		"redis":    func(context.Context) error { return nil },
	}, logger.Discard())
	r := chi.NewRouter()
	status.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Checks["database"] != "down" || body.Checks["redis"] != "up" {
		t.Fatalf("unexpected checks: %v", body.Checks)
	}
	if strings.Contains(w.Body.String(), "refused") {
		t.Fatal("probe error leaked into response")
	}
}
