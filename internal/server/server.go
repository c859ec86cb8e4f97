package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rd-agent/backend/internal/cache"
	"github.com/rd-agent/backend/internal/flags"
	"github.com/rd-agent/backend/internal/migrations"
	"github.com/rd-agent/backend/internal/pubmed"
	"github.com/rd-agent/backend/internal/queue"
	mid "github.com/rd-agent/backend/internal/server/middleware"
	"github.com/rd-agent/backend/internal/storage"
	"github.com/rd-agent/backend/internal/util"
	"github.com/rd-agent/backend/pkg/ai/provider"
	pgdb "github.com/rd-agent/backend/pkg/db/pgx"
	"github.com/rd-agent/backend/pkg/leaselock"
	"github.com/rd-agent/backend/pkg/loader/pdf"
	"github.com/rd-agent/backend/pkg/loader/web"
	"github.com/rd-agent/backend/pkg/logger"
	"github.com/rd-agent/backend/pkg/triage"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

func Init() {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewValidator()

	jwksUrl := util.GetEnv("AUTH_URL") + "/jwks"
	k, err := keyfunc.NewDefault([]string{jwksUrl})
	if err != nil {
		logger.Fatal("Failed to load jwks keys", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	if util.GetEnvBool("MIGRATE_ON_START", false) {
		if err := migrations.Run(databaseURL, util.GetEnvString("MIGRATIONS_DIR", migrations.DefaultDir)); err != nil {
			logger.Fatal("Failed to migrate database", "err", err)
		}
	}

	conn, err := pgdb.NewPool(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	publisher := queue.NewChannelPublisher(ch)

	store, err := storage.NewStoreFromEnv(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 store", "err", err)
	}

	aiClient, err := provider.FromEnv()
	if err != nil {
		logger.Fatal("Failed to create AI client", "err", err)
	}

	projectCache, err := cache.NewFromEnv(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to cache", "err", err)
	}
	defer projectCache.Close()

	featureFlags := flags.FromEnv()
	logger.Info("Feature flags", "flags", featureFlags)

	triageService := triage.NewService(triage.NewServiceParams{
		Store:          triage.NewPgStore(conn),
		AI:             aiClient,
		Web:            web.NewTextLoader(nil),
		PDF:            pdf.NewTextLoader(store),
		Cache:          projectCache,
		Notifier:       queue.StatusNotifier{Publisher: publisher},
		Flags:          featureFlags,
		Model:          util.GetEnv("AI_TRIAGE_MODEL"),
		MaxPaperTokens: util.GetEnvInt("TRIAGE_MAX_PAPER_TOKENS", triage.DefaultMaxPaperTokens),
	})

	masterAPIKey := util.GetEnv("MASTER_API_KEY")
	masterUserID, _ := strconv.ParseInt(util.GetEnv("MASTER_USER_ID"), 10, 64)
	masterUserRole := util.GetEnv("MASTER_USER_ROLE")

	app := &mid.App{
		DBConn:         conn,
		Queue:          publisher,
		Key:            &k,
		Storage:        store,
		AiClient:       aiClient,
		Cache:          projectCache,
		Flags:          featureFlags,
		Triage:         triageService,
		PubMed:         pubmed.NewClientFromEnv(),
		Locks:          leaselock.New(conn),
		TriageTimeout:  util.GetEnvSeconds("TRIAGE_TIMEOUT_SEC", 90*time.Second),
		MasterAPIKey:   masterAPIKey,
		MasterUserID:   masterUserID,
		MasterUserRole: masterUserRole,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
