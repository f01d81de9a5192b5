package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shieldsocial/commentsync/internal/cache"
	"github.com/shieldsocial/commentsync/internal/db"
	"github.com/shieldsocial/commentsync/pkg/logging"
)

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	db      *db.DB
	cache   *cache.Cache
	syncer  Syncer
	logger  *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, redisCache *cache.Cache, syncer Syncer) *Router {
	router := &Router{
		handler: NewJSONRPCHandler(),
		db:      database,
		cache:   redisCache,
		syncer:  syncer,
		logger:  logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	engine.POST("/", r.handler.Handle)
}

func (r *Router) registerMethods() {
	repo := db.NewRepository(r.db.DB)
	ingestAPI := NewIngestAPI(
		r.syncer,
		db.NewAccountRepository(repo),
		db.NewCommentRepository(repo),
		r.cache,
	)

	r.handler.RegisterMethod("ingest.sync_account", ingestAPI.SyncAccount)
	r.handler.RegisterMethod("ingest.sync_all", ingestAPI.SyncAll)
	r.handler.RegisterMethod("ingest.account_stats", ingestAPI.AccountStats)
	r.handler.RegisterMethod("ingest.sync_status", ingestAPI.SyncStatus)
}

// healthHandler reports database reachability; the cache is optional and
// only reported
func (r *Router) healthHandler(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":  "OK",
		"service": "commentsync-api",
	}

	if err := r.db.Health(c.Request.Context()); err != nil {
		r.logger.Warn("Database health check failed", zap.Error(err))
		status = http.StatusServiceUnavailable
		body["status"] = "UNAVAILABLE"
		body["database"] = err.Error()
	}

	switch err := r.cache.Health(c.Request.Context()); err {
	case nil:
		body["cache"] = "OK"
	case cache.ErrCacheDisabled:
		body["cache"] = "disabled"
	default:
		body["cache"] = err.Error()
	}

	c.JSON(status, body)
}
