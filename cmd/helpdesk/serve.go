package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/corpnet/helpdesk/internal/api/http"
	"github.com/corpnet/helpdesk/internal/api/http/handlers"
	"github.com/corpnet/helpdesk/internal/auth"
	"github.com/corpnet/helpdesk/internal/config"
	"github.com/corpnet/helpdesk/internal/domain"
	"github.com/corpnet/helpdesk/internal/events"
	"github.com/corpnet/helpdesk/internal/locker"
	"github.com/corpnet/helpdesk/internal/notification"
	"github.com/corpnet/helpdesk/internal/observability"
	"github.com/corpnet/helpdesk/internal/permission"
	"github.com/corpnet/helpdesk/internal/persistence"
	"github.com/corpnet/helpdesk/internal/repository"
	"github.com/corpnet/helpdesk/internal/repository/memory"
	"github.com/corpnet/helpdesk/internal/service"
	"github.com/corpnet/helpdesk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var seedDemo bool

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the helpdesk API. Without POSTGRES_DSN the server runs on the in-memory store.`,
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "Seed a demo directory when running on the in-memory store")
	return cmd
}

// storage is the persistence backend selected at startup. postgres is nil on
// the in-memory store.
type storage struct {
	tx          repository.TxManager
	repos       repository.Repositories
	users       repository.UserDirectory
	ticketTypes repository.TicketTypeCatalog
	departments repository.DepartmentRepository
	postgres    *persistence.Postgres
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.postgres.Close()

	var redis *persistence.Redis
	var ticketLocker locker.Locker = locker.NewKeyedMutex(cfg.Tickets.LockWait())
	if cfg.Redis.LocksEnabled {
		redis, err = persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer redis.Close()
		ticketLocker = locker.NewRedisLocker(redis.Client, cfg.Tickets.LockTTL(), cfg.Tickets.LockWait(), logger)
	}

	visibility, err := permission.NewCapabilityResolver(cfg.Tickets.VisibilityPolicy, logger)
	if err != nil {
		return fmt.Errorf("failed to load visibility policy: %w", err)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewAsyncDispatcher(cfg.Notification.Workers, cfg.Notification.QueueSize, logger, metrics)

	notifier := notification.NewService(notification.Dependencies{
		Resolver:    notification.NewRecipientResolver(store.repos.Tickets, store.repos.Participants, store.users),
		Renderer:    notification.NewRenderer(cfg.Notification.BaseURL),
		Sender:      newSender(cfg.Notification, logger),
		Logger:      logger,
		Metrics:     metrics,
		SendTimeout: cfg.Notification.SendTimeout(),
	})
	notificationWorker := worker.NewNotificationWorker(dispatcher, notifier, logger)
	notificationWorker.Start()
	defer notificationWorker.Stop()

	deps := service.Dependencies{
		Tx:          store.tx,
		Repos:       store.repos,
		Users:       store.users,
		TicketTypes: store.ticketTypes,
		Departments: store.departments,
		Locker:      ticketLocker,
		Dispatcher:  dispatcher,
		Visibility:  visibility,
		Logger:      logger,
	}
	ticketService := service.NewTicketService(deps)
	participantService := service.NewParticipantService(deps)
	messageService := service.NewMessageService(deps)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)

	var pgCheck, redisCheck handlers.Pinger
	if store.postgres != nil {
		pgCheck = store.postgres
	}
	if redis != nil {
		redisCheck = redis
	}
	health := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics,
		handlers.Dependency{Name: "postgres", Pinger: pgCheck},
		handlers.Dependency{Name: "redis", Pinger: redisCheck},
	)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         health,
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Participants:   handlers.NewParticipantsHandler(participantService),
		Messages:       handlers.NewMessagesHandler(messageService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.users),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		errCh <- app.Listen(cfg.App.Addr())
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("fiber listen", zap.Error(err))
			return err
		}
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	if cfg.Postgres.DSN == "" {
		logger.Warn("running on the in-memory store; data is lost on restart")
		mem := memory.NewStore()
		dir := memory.NewDirectory()
		if seedDemo {
			seedDemoDirectory(dir)
			logger.Info("seeded demo directory")
		}
		return &storage{
			tx:          mem,
			repos:       mem.Repositories(),
			users:       dir,
			ticketTypes: dir.TicketTypes(),
			departments: dir.Departments(),
		}, nil
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	pool := pg.PoolHandle()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return &storage{
		tx:          repository.NewTxManager(pool),
		repos:       repository.NewPostgresRepositories(pool),
		users:       repository.NewUserDirectory(pool),
		ticketTypes: repository.NewTicketTypeCatalog(pool),
		departments: repository.NewDepartmentRepository(pool),
		postgres:    pg,
	}, nil
}

func newSender(cfg config.NotificationConfig, logger *zap.Logger) notification.Sender {
	if cfg.SMTPHost == "" {
		logger.Info("NOTIFY_SMTP_HOST not set; notifications are logged only")
		return notification.NewLogSender(logger)
	}
	return notification.NewSMTPSender(notification.SMTPConfig{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		FromAddress: cfg.EmailFrom,
		FromName:    cfg.EmailFromName,
	})
}

func seedDemoDirectory(dir *memory.Directory) {
	managerID := "demo-manager"
	techID := "demo-tech"
	deptID := "demo-it"
	dir.AddDepartment(domain.Department{ID: deptID, Name: "IT", IsActive: true})
	dir.AddUser(domain.User{ID: "demo-admin", Email: "admin@helpdesk.local", DisplayName: "Admin", RoleName: "admin", Active: true})
	dir.AddUser(domain.User{ID: managerID, Email: "manager@helpdesk.local", DisplayName: "Manager", RoleName: "manager", DepartmentID: &deptID, Active: true})
	dir.AddUser(domain.User{ID: techID, Email: "tech@helpdesk.local", DisplayName: "Technician", RoleName: "technician", ManagerID: &managerID, DepartmentID: &deptID, Active: true})
	dir.AddUser(domain.User{ID: "demo-employee", Email: "employee@helpdesk.local", DisplayName: "Employee", RoleName: "employee", Active: true})
	dir.AddType(domain.TicketType{ID: "demo-support", Code: "SUP", Name: "Support", DefaultAssigneeID: &techID, IsActive: true})
	dir.AddType(domain.TicketType{ID: "demo-access", Code: "ACC", Name: "Access request", IsActive: true})
}
