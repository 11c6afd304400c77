package bootstrap

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medassist/internal/api/router"
	"github.com/wolfman30/medassist/internal/appointments"
	"github.com/wolfman30/medassist/internal/audit"
	appconfig "github.com/wolfman30/medassist/internal/config"
	"github.com/wolfman30/medassist/internal/conversation"
	"github.com/wolfman30/medassist/internal/database"
	"github.com/wolfman30/medassist/internal/events"
	httpmiddleware "github.com/wolfman30/medassist/internal/http/middleware"
	"github.com/wolfman30/medassist/internal/http/respond"
	"github.com/wolfman30/medassist/internal/identity"
	"github.com/wolfman30/medassist/internal/location"
	"github.com/wolfman30/medassist/internal/notify"
	"github.com/wolfman30/medassist/internal/observability/metrics"
	"github.com/wolfman30/medassist/internal/schedules"
	"github.com/wolfman30/medassist/internal/webchat"
	"github.com/wolfman30/medassist/pkg/logging"
)

// App is the wired API: its HTTP handler plus the background pieces that
// need starting and draining.
type App struct {
	Handler    http.Handler
	Dispatcher *notify.Dispatcher
	Deliverer  *events.Deliverer

	logger  *logging.Logger
	limiter *httpmiddleware.RateLimiter
	pool    *pgxpool.Pool
	sqlDB   *sql.DB
	redis   *redis.Client
}

// BuildApp wires every component from cfg. Without DATABASE_URL the stores
// are in memory and the outbox is disabled. awsCfg may be nil.
func BuildApp(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	app := &App{logger: logger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	resp := respond.New(logger, cfg.IsDevelopment())

	var (
		userRepo    identity.Repository       = identity.NewInMemoryRepository()
		slotRepo    schedules.Repository      = schedules.NewInMemoryRepository()
		apptRepo    appointments.Repository   = appointments.NewInMemoryRepository()
		chatStore   conversation.MessageStore = conversation.NewInMemoryMessageStore()
		apptOptions []appointments.Option
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		app.pool = pool
		app.sqlDB = stdlib.OpenDBFromPool(pool)

		userRepo = identity.NewPostgresRepository(pool)
		slotRepo = schedules.NewPostgresRepository(pool)
		apptRepo = appointments.NewPostgresRepository(pool)
		chatStore = conversation.NewPostgresMessageStore(pool)

		outbox := events.NewOutboxStore(pool)
		apptOptions = append(apptOptions, appointments.WithEvents(outbox))
		app.Deliverer = events.NewDeliverer(outbox, BuildEventHandler(cfg, awsCfg, logger), logger)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}
	app.redis = BuildRedisClient(ctx, cfg, logger, true)
	auditLog := audit.NewService(app.sqlDB, logger)

	email, provider := BuildEmailSender(cfg, awsCfg, logger)
	logger.Info("email provider selected", "provider", provider)
	sms := notify.NewSMSSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.SimulateSMS, logger)
	app.Dispatcher = notify.NewDispatcher(sms, email, logger,
		notify.WithTimeout(cfg.NotifyTimeout),
		notify.WithMetrics(m),
	)

	tokens := identity.NewTokenManager(cfg.AccessTokenSecret, cfg.TokenTTL)
	users := identity.NewService(userRepo, tokens, logger,
		identity.WithWelcomer(app.Dispatcher),
		identity.WithAudit(auditLog),
		identity.WithMainAdmin(cfg.AdminEmail),
	)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := users.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			app.Close()
			return nil, err
		}
	}

	apptOptions = append(apptOptions,
		appointments.WithNotifier(app.Dispatcher),
		appointments.WithUsers(userRepo),
		appointments.WithArchiver(BuildArchive(cfg, awsCfg, logger)),
		appointments.WithAudit(auditLog),
		appointments.WithMetrics(m),
	)
	bookings := appointments.NewService(apptRepo, slotRepo, logger, apptOptions...)
	slots := schedules.NewService(slotRepo, logger).WithReferenceChecker(bookings)

	chat := conversation.NewService(chatStore, BuildLLMClient(ctx, cfg, awsCfg, m, logger), logger,
		conversation.WithHistoryCache(conversation.NewHistoryCache(app.redis)),
	)

	var geocoder location.Geocoder
	if cfg.OpenCageAPIKey != "" {
		geocoder = location.NewOpenCageGeocoder(cfg.OpenCageAPIKey)
	}
	places := location.NewService(geocoder, location.NewOverpassClient(cfg.OverpassURL), app.redis, logger)

	app.limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	app.Handler = router.New(&router.Config{
		Logger:              logger,
		Responder:           resp,
		Auth:                users,
		Roles:               users,
		IdentityHandler:     identity.NewHandler(users, resp),
		ScheduleHandler:     schedules.NewHandler(slots, resp),
		AppointmentHandler:  appointments.NewHandler(bookings, resp),
		ConversationHandler: conversation.NewHandler(chat, bookings, resp),
		WebChatHandler:      webchat.NewHandler(chat, logger),
		LocationHandler:     location.NewHandler(places, resp),
		MetricsHandler:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:         app.limiter,
		HealthCheck:         app.healthCheck,
	})
	return app, nil
}

func (a *App) healthCheck(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	return a.pool.Ping(ctx)
}

// Start runs the outbox deliverer until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.Deliverer != nil {
		go a.Deliverer.Start(ctx)
	}
}

// Drain waits for in-flight notifications, bounded by ctx.
func (a *App) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.Dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("notification drain timed out")
	}
}

// Close releases connections. Call after Drain.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 30 * time.Second
