package middleware

import (
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/rd-agent/backend/internal/cache"
	"github.com/rd-agent/backend/internal/flags"
	"github.com/rd-agent/backend/internal/pubmed"
	"github.com/rd-agent/backend/internal/queue"
	"github.com/rd-agent/backend/internal/storage"
	"github.com/rd-agent/backend/pkg/ai"
	"github.com/rd-agent/backend/pkg/leaselock"
	"github.com/rd-agent/backend/pkg/triage"
)

type AppUser struct {
	UserID      int64
	Email       string
	Name        string
	Role        string
	Permissions []string
}

type App struct {
	DBConn   *pgxpool.Pool
	Queue    queue.Publisher
	Key      *keyfunc.Keyfunc
	Storage  *storage.Store
	AiClient ai.Client
	Cache    *cache.Cache
	Flags    flags.Flags
	Triage   *triage.Service
	PubMed   *pubmed.Client
	Locks    *leaselock.Client

	TriageTimeout time.Duration

	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
