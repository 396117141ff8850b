// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/havenpoint/facility-response/internal/actuator"
	"github.com/havenpoint/facility-response/internal/archive"
	archivepostgres "github.com/havenpoint/facility-response/internal/archive/postgres"
	"github.com/havenpoint/facility-response/internal/audit"
	auditpostgres "github.com/havenpoint/facility-response/internal/audit/postgres"
	"github.com/havenpoint/facility-response/internal/auth/jwt"
	"github.com/havenpoint/facility-response/internal/config"
	"github.com/havenpoint/facility-response/internal/domain"
	"github.com/havenpoint/facility-response/internal/notify"
	"github.com/havenpoint/facility-response/internal/notify/email"
	"github.com/havenpoint/facility-response/internal/notify/pa"
	"github.com/havenpoint/facility-response/internal/notify/push"
	"github.com/havenpoint/facility-response/internal/notify/sms"
	"github.com/havenpoint/facility-response/internal/occupancy"
	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
	"github.com/havenpoint/facility-response/internal/pkg/httputil"
	"github.com/havenpoint/facility-response/internal/pkg/metrics"
	"github.com/havenpoint/facility-response/internal/pkg/postgres"
	"github.com/havenpoint/facility-response/internal/readiness"
	"github.com/havenpoint/facility-response/internal/registry"
	"github.com/havenpoint/facility-response/internal/response"
	"github.com/havenpoint/facility-response/internal/version"
)

// App owns every long-lived component: the HTTP servers, the database
// pool, the readiness monitor and the orchestrator's background trackers.
type App struct {
	config           *config.Config
	logger           *slog.Logger
	db               *pgxpool.Pool
	server           *http.Server
	metricsServer    *http.Server
	backgroundCancel context.CancelFunc
	responseService  *response.Service
	monitor          *readiness.Monitor
}

// New wires the full application from config. It connects the database
// when one is configured, builds the collaborator clients and the router,
// and prepares both listeners without starting them.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	var db *pgxpool.Pool
	if cfg.Database.Enabled {
		connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
		defer connectCancel()

		pool, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		db = pool
	}

	backgroundCtx, backgroundCancel := context.WithCancel(context.Background())
	backgroundCtx = ctxlog.WithLogger(backgroundCtx, logger)

	app := &App{
		config:           cfg,
		logger:           logger,
		db:               db,
		backgroundCancel: backgroundCancel,
	}

	if db != nil {
		go app.collectDBMetrics(backgroundCtx)
	}

	router, err := app.setupRouter(backgroundCtx)
	if err != nil {
		if db != nil {
			db.Close()
		}
		backgroundCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// The metrics listener is separate so scrapes never compete with API
	// traffic.
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts both listeners and blocks on the API server.
func (a *App) Run() error {
	go func() {
		a.logger.Info("metrics server listening",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("api server listening",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops background work, drains both listeners in parallel and
// closes the database pool last so in-flight requests can still write.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	a.backgroundCancel()
	if a.responseService != nil {
		a.responseService.StopTrackers()
	}

	servers := map[string]*http.Server{
		"api":     a.server,
		"metrics": a.metricsServer,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for name, srv := range servers {
		wg.Add(1)
		go func(name string, srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s server: %w", name, err))
				mu.Unlock()
			}
		}(name, srv)
	}
	wg.Wait()

	if a.db != nil {
		a.db.Close()
	}
	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// ResponseService returns the orchestrator instance. Used in tests.
func (a *App) ResponseService() *response.Service {
	return a.responseService
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	act, err := a.buildActuator()
	if err != nil {
		return nil, err
	}

	occ, err := a.buildOccupancy()
	if err != nil {
		return nil, err
	}

	dispatcher, err := a.buildDispatcher()
	if err != nil {
		return nil, err
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("create notification renderer: %w", err)
	}

	var auditLog audit.Log
	var archiveRepo archive.Repository
	if a.db != nil {
		auditLog = auditpostgres.NewLog(a.db)
		archiveRepo = archivepostgres.NewRepository(a.db)
	} else {
		a.logger.Warn("database disabled: audit log and incident archive are in-memory")
		auditLog = audit.NewMemoryLog()
		archiveRepo = archive.NewMemoryRepository()
	}

	a.monitor = readiness.NewMonitor(a.buildProbes(act, occ), a.config.Readiness.Interval, a.config.Readiness.ProbeTimeout)
	go a.monitor.Run(ctx)

	emergencyChannels := make([]notify.ChannelType, 0, len(a.config.Response.EmergencyChannels))
	for _, ch := range a.config.Response.EmergencyChannels {
		emergencyChannels = append(emergencyChannels, notify.ChannelType(ch))
	}

	reg := registry.New()
	a.responseService = response.NewService(
		response.Config{
			DefaultEvacuationZones: a.config.Response.DefaultEvacuationZones,
			ActionTimeout:          a.config.Response.ActionTimeout,
			ProgressInterval:       a.config.Response.ProgressInterval,
			ProgressDeadline:       a.config.Response.ProgressDeadline,
			EmergencyChannels:      emergencyChannels,
			StaffRecipients:        a.config.Response.StaffRecipients,
			ManagementRecipients:   a.config.Response.ManagementRecipients,
			EmergencyContacts:      a.config.Response.EmergencyContacts,
			SelfTestLive:           a.config.Response.SelftestLive,
		},
		reg, act, occ, dispatcher, renderer, auditLog, archiveRepo, a.monitor,
	)

	responseHandler := response.NewHandler(a.responseService, archiveRepo)

	jwtAuth, err := jwt.NewAuthenticator(jwt.Config{
		SecretKey:     a.config.JWT.SecretKey,
		TokenDuration: a.config.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("create jwt authenticator: %w", err)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httputil.AuthMiddleware(jwtAuth))

			responseHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleDispatcher))
				responseHandler.RegisterDispatcherRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(httputil.RequireRole(domain.RoleCommander))
				responseHandler.RegisterCommanderRoutes(r)
			})
		})
	})

	return r, nil
}

func (a *App) buildActuator() (response.SecurityActuator, error) {
	if a.config.Actuator.Mode == "http" {
		client, err := actuator.NewClient(actuator.Config{
			BaseURL: a.config.Actuator.BaseURL,
			Token:   a.config.Actuator.Token,
			Timeout: a.config.Actuator.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create security gateway client: %w", err)
		}
		return client, nil
	}

	a.logger.Warn("security actuator in log mode: no hardware will be driven")
	return actuator.NewLogActuator(), nil
}

func (a *App) buildOccupancy() (response.Occupancy, error) {
	if a.config.Occupancy.Mode == "http" {
		client, err := occupancy.NewClient(occupancy.Config{
			BaseURL: a.config.Occupancy.BaseURL,
			Token:   a.config.Occupancy.Token,
			Timeout: a.config.Occupancy.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create occupancy client: %w", err)
		}
		return client, nil
	}

	return occupancy.Static{Count: a.config.Occupancy.StaticCount}, nil
}

func (a *App) buildDispatcher() (*notify.Dispatcher, error) {
	emailSender, err := email.NewSender(email.Config{
		Enabled:      a.config.Notifications.Email.Enabled,
		SMTPHost:     a.config.Notifications.Email.SMTPHost,
		SMTPPort:     a.config.Notifications.Email.SMTPPort,
		SMTPUser:     a.config.Notifications.Email.SMTPUser,
		SMTPPassword: a.config.Notifications.Email.SMTPPassword,
		FromAddress:  a.config.Notifications.Email.FromAddress,
		BatchSize:    a.config.Notifications.Email.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create email sender: %w", err)
	}
	if !a.config.Notifications.Email.Enabled {
		a.logger.Warn("email sender is disabled: email notifications will not be sent")
	}

	smsSender, err := sms.NewSender(sms.Config{
		Enabled:    a.config.Notifications.SMS.Enabled,
		GatewayURL: a.config.Notifications.SMS.GatewayURL,
		APIKey:     a.config.Notifications.SMS.APIKey,
		SenderID:   a.config.Notifications.SMS.SenderID,
		RateLimit:  a.config.Notifications.SMS.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("create sms sender: %w", err)
	}

	pushSender, err := push.NewSender(push.Config{
		Enabled:    a.config.Notifications.Push.Enabled,
		GatewayURL: a.config.Notifications.Push.GatewayURL,
		APIKey:     a.config.Notifications.Push.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create push sender: %w", err)
	}

	var controller pa.Controller
	if a.config.Notifications.PA.Enabled {
		controller = pa.NewHTTPController(pa.ControllerConfig{
			BaseURL: a.config.Notifications.PA.BaseURL,
			Token:   a.config.Notifications.PA.Token,
		})
	} else {
		a.logger.Warn("public address controller is disabled: announcements will not play")
	}

	paSender, err := pa.NewSender(pa.Config{Enabled: a.config.Notifications.PA.Enabled}, controller, notify.ChannelPublicAddress)
	if err != nil {
		return nil, fmt.Errorf("create public address sender: %w", err)
	}
	alarmSender, err := pa.NewSender(pa.Config{Enabled: a.config.Notifications.PA.Enabled}, controller, notify.ChannelAlarm)
	if err != nil {
		return nil, fmt.Errorf("create alarm sender: %w", err)
	}

	return notify.NewDispatcher(emailSender, smsSender, pushSender, paSender, alarmSender), nil
}

func (a *App) buildProbes(act response.SecurityActuator, occ response.Occupancy) []readiness.Probe {
	probes := []readiness.Probe{
		{Name: response.ProbeActuator, Check: act.Ping},
		{Name: response.ProbeOccupancy, Check: func(ctx context.Context) error {
			_, err := occ.CurrentPersonsOnSite(ctx)
			return err
		}},
	}

	storeCheck := func(context.Context) error { return nil }
	if a.db != nil {
		storeCheck = a.db.Ping
	}
	probes = append(probes,
		readiness.Probe{Name: response.ProbeAudit, Check: storeCheck},
		readiness.Probe{Name: response.ProbeArchive, Check: storeCheck},
	)

	return probes
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := a.db.Ping(ctx); err != nil {
			ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
			httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
