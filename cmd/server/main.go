package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"doccontrol/internal/audit"
	"doccontrol/internal/document"
	"doccontrol/internal/identity"
	"doccontrol/internal/jwttoken"
	"doccontrol/internal/platform/config"
	"doccontrol/internal/platform/httpserver"
	"doccontrol/internal/platform/logger"
	"doccontrol/internal/platform/metrics"
	"doccontrol/internal/platform/postgres"
	platformredis "doccontrol/internal/platform/redis"
	"doccontrol/internal/signature"
	"doccontrol/internal/signature/lockout"
	httptransport "doccontrol/internal/transport/http"
	"doccontrol/internal/view"
	"doccontrol/internal/workflow"
	"doccontrol/pkg/platform/storetx"
)

const auditStreamBuffer = 256

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory otherwise.
	var (
		uow            storetx.StoreTx
		userStore      identity.Store
		documentStore  document.Store
		versionStore   document.VersionStore
		typeStore      document.TypeStore
		templateStore  workflow.TemplateStore
		runStore       workflow.RunStore
		signatureStore signature.Store
		auditStore     audit.Store
		health         func(ctx context.Context) error
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		uow = storetx.NewPostgres(db)
		userStore = identity.NewPostgresStore(db)
		documentStore = document.NewPostgresStore(db)
		versionStore = document.NewPostgresVersionStore(db)
		typeStore = document.NewPostgresTypeStore(db)
		templateStore = workflow.NewPostgresTemplateStore(db)
		runStore = workflow.NewPostgresRunStore(db)
		signatureStore = signature.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		health = db.PingContext
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		uow = storetx.NewInMemory()
		userStore = identity.NewInMemory()
		documentStore = document.NewInMemoryStore()
		versionStore = document.NewInMemoryVersionStore()
		typeStore = document.NewInMemoryTypeStore()
		templateStore = workflow.NewInMemoryTemplateStore()
		runStore = workflow.NewInMemoryRunStore()
		signatureStore = signature.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
	}

	group, ctx := errgroup.WithContext(ctx)

	// Audit recorder, optionally streaming committed events to Kafka.
	auditOpts := []audit.Option{}
	var stream chan audit.Event
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := audit.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		defer producer.Close()
		stream = make(chan audit.Event, auditStreamBuffer)
		auditOpts = append(auditOpts, audit.WithStream(stream))
		publisher := audit.NewPublisher(producer, cfg.KafkaTopic, stream, log)
		group.Go(func() error { return publisher.Run(ctx) })
	}
	recorder := audit.NewService(auditStore, auditOpts...)

	// Signature lockout: redis when configured, process-local otherwise.
	var guard lockout.Guard = lockout.NewMemory(cfg.LockoutThreshold, cfg.LockoutWindow)
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		guard = lockout.NewRedis(redisClient, cfg.LockoutThreshold, cfg.LockoutWindow)
	}

	identities := identity.NewService(userStore, recorder, uow, identity.WithLogger(log))
	documents := document.NewService(documentStore, versionStore, typeStore, recorder, uow,
		document.WithLogger(log),
		document.WithObserver(documentCounter{m}))
	orchestrator := workflow.NewOrchestrator(templateStore, runStore, documents,
		workflow.WithOrchestratorLogger(log),
		workflow.WithRunObserver(runCounter{m}))
	documents.SetWorkflowStarter(orchestrator)
	templates := workflow.NewTemplateService(templateStore, recorder, uow,
		workflow.WithTemplateLogger(log))
	gate := signature.NewGate(signatureStore, documents, identities, runStore, orchestrator,
		recorder, uow,
		signature.WithLogger(log),
		signature.WithGuard(guard),
		signature.WithObserver(signatureCounter{m}))
	views := view.NewService(documents, orchestrator, signatureStore, recorder)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:     log,
		Metrics:    m,
		Validator:  jwttoken.New(cfg.JWTSigningKey, "doccontrol"),
		Documents:  documents,
		Templates:  templates,
		Gate:       gate,
		View:       views,
		Identities: identities,
		Audit:      recorder,
		Health:     health,
	})

	srv := httpserver.New(cfg.Addr, router)
	group.Go(func() error {
		log.Info("starting doccontrol", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type documentCounter struct{ m *metrics.Metrics }

func (c documentCounter) DocumentCreated() { c.m.DocumentsCreated.Inc() }
func (c documentCounter) VersionCreated()  { c.m.VersionsCreated.Inc() }

type runCounter struct{ m *metrics.Metrics }

func (c runCounter) RunStarted()   { c.m.WorkflowRunsStarted.Inc() }
func (c runCounter) RunCompleted() { c.m.WorkflowRunsComplete.Inc() }

type signatureCounter struct{ m *metrics.Metrics }

func (c signatureCounter) SignatureCaptured() { c.m.SignaturesCaptured.Inc() }
func (c signatureCounter) SignatureRejected() { c.m.SignaturesRejected.Inc() }
