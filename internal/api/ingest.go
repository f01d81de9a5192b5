package api

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/shieldsocial/commentsync/internal/cache"
	"github.com/shieldsocial/commentsync/internal/ingest"
	"github.com/shieldsocial/commentsync/internal/models"
	"github.com/shieldsocial/commentsync/internal/platform"
)

// Syncer runs ingestion on behalf of a user
type Syncer interface {
	SyncAccount(ctx context.Context, userID, accountID string, opts platform.FetchOptions) (*ingest.Result, error)
	SyncAll(ctx context.Context, userID string, opts platform.FetchOptions) (*ingest.SyncAllResult, error)
}

// AccountReader performs owner-checked account lookups
type AccountReader interface {
	GetAccount(ctx context.Context, accountID, userID string) (*models.SocialAccount, error)
}

// StatsReader summarizes stored comments for an account
type StatsReader interface {
	Stats(ctx context.Context, accountID string) (*models.CommentStats, error)
}

// ResultReader returns the last cached result for an account
type ResultReader interface {
	GetResult(ctx context.Context, accountID string) (*ingest.Result, error)
}

// IngestAPI provides the ingest.* methods
type IngestAPI struct {
	syncer   Syncer
	accounts AccountReader
	stats    StatsReader
	results  ResultReader
}

// NewIngestAPI creates the ingestion API. results may be nil when no
// cache is configured.
func NewIngestAPI(syncer Syncer, accounts AccountReader, stats StatsReader, results ResultReader) *IngestAPI {
	return &IngestAPI{
		syncer:   syncer,
		accounts: accounts,
		stats:    stats,
		results:  results,
	}
}

type accountParams struct {
	UserID    string     `json:"user_id" validate:"required,uuid"`
	AccountID string     `json:"account_id" validate:"omitempty,uuid"`
	Limit     int        `json:"limit" validate:"gte=0,lte=1000"`
	MaxPages  int        `json:"max_pages" validate:"gte=0,lte=50"`
	Since     *time.Time `json:"since"`
	Until     *time.Time `json:"until"`
}

var validate = newValidator()

// newValidator reports fields by their JSON parameter names
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func parseParams(params json.RawMessage, needAccount bool) (*accountParams, error) {
	var p accountParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams("invalid parameters format")
		}
	}
	if err := validate.Struct(&p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, invalidParams("invalid parameter %s: failed %s", verrs[0].Field(), verrs[0].Tag())
		}
		return nil, invalidParams("invalid parameters")
	}
	if needAccount && p.AccountID == "" {
		return nil, invalidParams("missing required parameter: account_id")
	}
	if p.Since != nil && p.Until != nil && p.Until.Before(*p.Since) {
		return nil, invalidParams("until must not be before since")
	}
	return &p, nil
}

func (p *accountParams) fetchOptions() platform.FetchOptions {
	return platform.FetchOptions{
		Limit:    p.Limit,
		MaxPages: p.MaxPages,
		Since:    p.Since,
		Until:    p.Until,
	}
}

func accountNotFound() *Error {
	return NewError(ErrNotFound, "Account not found")
}

// SyncAccount handles ingest.sync_account
func (a *IngestAPI) SyncAccount(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := parseParams(params, true)
	if err != nil {
		return nil, err
	}

	result, err := a.syncer.SyncAccount(ctx.Request.Context(), p.UserID, p.AccountID, p.fetchOptions())
	if errors.Is(err, ingest.ErrAccountNotFound) {
		return nil, accountNotFound()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SyncAll handles ingest.sync_all
func (a *IngestAPI) SyncAll(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := parseParams(params, false)
	if err != nil {
		return nil, err
	}
	return a.syncer.SyncAll(ctx.Request.Context(), p.UserID, p.fetchOptions())
}

// AccountStats handles ingest.account_stats
func (a *IngestAPI) AccountStats(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := parseParams(params, true)
	if err != nil {
		return nil, err
	}

	account, err := a.accounts.GetAccount(ctx.Request.Context(), p.AccountID, p.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountNotFound()
	}

	return a.stats.Stats(ctx.Request.Context(), account.ID)
}

// SyncStatus handles ingest.sync_status. The result is null when nothing
// is cached for the account.
func (a *IngestAPI) SyncStatus(ctx *gin.Context, params json.RawMessage) (interface{}, error) {
	p, err := parseParams(params, true)
	if err != nil {
		return nil, err
	}

	account, err := a.accounts.GetAccount(ctx.Request.Context(), p.AccountID, p.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, accountNotFound()
	}
	if a.results == nil {
		return nil, nil
	}

	result, err := a.results.GetResult(ctx.Request.Context(), account.ID)
	if errors.Is(err, cache.ErrCacheDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result, nil
}
