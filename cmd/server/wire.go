package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"boxoffice/internal/account/gate"
	accounthandler "boxoffice/internal/account/handler"
	accountservice "boxoffice/internal/account/service"
	accountstore "boxoffice/internal/account/store"
	"boxoffice/internal/audit"
	audithandler "boxoffice/internal/audit/handler"
	"boxoffice/internal/audit/kafka"
	"boxoffice/internal/audit/mirror"
	auditmemory "boxoffice/internal/audit/store/memory"
	auditpostgres "boxoffice/internal/audit/store/postgres"
	"boxoffice/internal/authz"
	eventhandler "boxoffice/internal/event/handler"
	eventmodels "boxoffice/internal/event/models"
	eventservice "boxoffice/internal/event/service"
	eventstore "boxoffice/internal/event/store"
	"boxoffice/internal/identity"
	"boxoffice/internal/identity/keycloak"
	identitymemory "boxoffice/internal/identity/memory"
	"boxoffice/internal/identity/token"
	invitehandler "boxoffice/internal/invite/handler"
	inviteservice "boxoffice/internal/invite/service"
	invitestore "boxoffice/internal/invite/store"
	"boxoffice/internal/platform/config"
	"boxoffice/internal/platform/metrics"
	"boxoffice/internal/platform/postgres"
	platformredis "boxoffice/internal/platform/redis"
	"boxoffice/internal/registration"
	registrationhandler "boxoffice/internal/registration/handler"
	httptransport "boxoffice/internal/transport/http"
	id "boxoffice/pkg/domain"
	"boxoffice/pkg/platform/circuit"
	"boxoffice/pkg/platform/httputil"
	"boxoffice/pkg/platform/tx"
)

// devSecret signs development tokens when no key is configured.
const devSecret = "boxoffice-development-only"

type eventStore interface {
	Get(ctx context.Context, eventID id.EventID) (*eventmodels.Event, error)
	Grant(ctx context.Context, g eventmodels.StaffGrant) (bool, error)
	RevokeStaff(ctx context.Context, eventID id.EventID, accountID id.AccountID) (bool, error)
	IsStaff(ctx context.Context, eventID id.EventID, accountID id.AccountID) (bool, error)
	ListStaff(ctx context.Context, eventID id.EventID) ([]eventmodels.StaffGrant, error)
}

type storage struct {
	kind     string
	db       *sql.DB
	accounts accountservice.Store
	events   eventStore
	invites  inviteservice.Store
	audit    audit.Store
	runner   tx.Runner
}

type app struct {
	router        http.Handler
	invites       *inviteservice.Service
	mirror        *mirror.Mirror
	redis         *platformredis.Client
	system        accountservice.SystemActor
	storageKind   string
	directoryKind string
	closers       []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openStorage uses PostgreSQL when DATABASE_URL is set and in-memory stores
// otherwise.
func openStorage(ctx context.Context, cfg config.Database) (*storage, error) {
	if cfg.URL == "" {
		return &storage{
			kind:     "memory",
			accounts: accountstore.NewInMemory(),
			events:   eventstore.NewInMemory(),
			invites:  invitestore.NewInMemory(),
			audit:    auditmemory.New(),
			runner:   tx.NewMemoryRunner(),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &storage{
		kind:     "postgres",
		db:       db,
		accounts: accountstore.NewPostgres(db),
		events:   eventstore.NewPostgres(db),
		invites:  invitestore.NewPostgres(db),
		audit:    auditpostgres.New(db),
		runner:   tx.NewSQLRunner(db),
	}, nil
}

// openDirectory uses Keycloak when KEYCLOAK_BASE_URL is set and the
// in-memory directory otherwise.
func openDirectory(ctx context.Context, cfg config.Keycloak) (identity.Directory, string) {
	if cfg.BaseURL == "" {
		return identitymemory.New(), "memory"
	}
	return keycloak.New(ctx, keycloak.Config{
		BaseURL:      cfg.BaseURL,
		Realm:        cfg.Realm,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Timeout:      cfg.Timeout,
	}), "keycloak"
}

func newVerifier(cfg config.Server, log *slog.Logger) (*token.Verifier, error) {
	tc := token.Config{
		Issuer:       cfg.JWT.Issuer,
		Audience:     cfg.JWT.Audience,
		HMACSecret:   cfg.JWT.HMACSecret,
		PublicKeyPEM: cfg.JWT.PublicKeyPEM,
		ClientID:     cfg.JWT.ClientID,
		Leeway:       time.Duration(cfg.JWT.LeewaySeconds) * time.Second,
	}
	if tc.HMACSecret == "" && tc.PublicKeyPEM == "" {
		// config validation only lets this through in development
		log.Warn("no token key configured, using the development secret")
		tc.HMACSecret = devSecret
	}
	return token.NewVerifier(tc)
}

func build(ctx context.Context, cfg config.Server, reg prometheus.Registerer, log *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	st, err := openStorage(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.storageKind = st.kind
	if st.db != nil {
		a.closers = append(a.closers, func() { _ = st.db.Close() })
	}

	system, err := accountservice.LoadSystemActor(ctx, st.accounts)
	if err != nil {
		return nil, err
	}
	a.system = system

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	if rc != nil {
		a.redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}

	sinkOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(audit.NewMetrics(reg)),
		audit.WithSystemActor(system.ID()),
	}
	var pub *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err = kafka.New(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, fmt.Errorf("open audit mirror: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		a.mirror = mirror.New(pub, cfg.Kafka.BufferSize, mirror.WithLogger(log), mirror.WithMetrics(reg))
		sinkOpts = append(sinkOpts, audit.WithMirror(a.mirror))
	}
	sink := audit.NewSink(st.audit, sinkOpts...)

	remote, kind := openDirectory(ctx, cfg.Keycloak)
	a.directoryKind = kind
	directory := identity.NewGuarded(remote, circuit.New("identity_directory"), log)

	verifier, err := newVerifier(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("token verifier: %w", err)
	}

	responder := httputil.Responder{Sanitize: !cfg.IsDevelopment()}

	accounts := accountservice.NewAccounts(st.accounts,
		accountservice.WithLogger(log),
		accountservice.WithAuditRecorder(sink),
	)
	approvals := accountservice.NewApprovalService(accounts, directory)
	engine := authz.New(accounts, st.events,
		authz.WithLogger(log),
		authz.WithAuditRecorder(sink),
		authz.WithMetrics(authz.NewMetrics(reg)),
	)
	invites := inviteservice.New(st.invites, accounts, st.events, directory, st.runner,
		inviteservice.WithLogger(log),
		inviteservice.WithAuditRecorder(sink),
		inviteservice.WithMetrics(inviteservice.NewMetrics(reg)),
		inviteservice.WithSystemActor(system.ID()),
	)
	a.invites = invites
	orchestrator := registration.New(accounts, invites, st.events, directory,
		registration.WithLogger(log),
		registration.WithAuditRecorder(sink),
		registration.WithMetrics(registration.NewMetrics(reg)),
		registration.WithSystemActor(system.ID()),
	)

	pipeline := httptransport.PipelineConfig{
		Verifier:  verifier,
		Gate:      gate.New(accounts, gate.WithLogger(log), gate.WithAuditRecorder(sink), gate.WithResponder(responder)),
		Anonymous: httptransport.DefaultAnonymousRoutes(),
		Metrics:   metrics.NewHTTP(reg),
		Responder: responder,
		Logger:    log,
	}
	if cfg.ProvisionLegacyAccounts {
		pipeline.Provisioner = accounts
	}

	probes := map[string]httptransport.Probe{
		"identity_directory": httptransport.BreakerProbe(directory),
	}
	if st.db != nil {
		probes["database"] = httptransport.PingProbe(st.db)
	}
	if rc != nil {
		probes["redis"] = rc.Health
	}
	if pub != nil {
		probes["audit_mirror"] = pub.Ping
	}
	status := httptransport.NewStatus(httptransport.Info{
		Service:     "boxoffice",
		Version:     cfg.Version,
		Environment: cfg.Environment,
	}, probes, log)

	gatherer, isGatherer := reg.(prometheus.Gatherer)
	if !isGatherer {
		return nil, errors.New("metrics registry must also be a gatherer")
	}

	a.router = httptransport.NewRouter(httptransport.RouterConfig{
		Stages: httptransport.Pipeline(pipeline),
		Handlers: []httptransport.Registrar{
			status,
			registrationhandler.New(orchestrator, responder, log),
			invitehandler.New(invites, inviteservice.NewIssuer(invites, engine), responder, log),
			accounthandler.New(accounts, approvals, responder, log),
			eventhandler.New(eventservice.New(st.events, engine, log), responder, log),
			audithandler.New(sink, responder, log),
		},
		Metrics:   metrics.Handler(gatherer),
		Responder: responder,
	})

	ok = true
	return a, nil
}
