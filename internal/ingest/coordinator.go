// Package ingest drives fetch, normalize and persist for linked social
// accounts and aggregates the per-account outcomes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/iter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shieldsocial/commentsync/internal/models"
	"github.com/shieldsocial/commentsync/internal/platform"
	"github.com/shieldsocial/commentsync/pkg/logging"
	"github.com/shieldsocial/commentsync/pkg/telemetry"
)

var (
	ErrNoClient      = errors.New("no client for platform")
	ErrNoAccessToken = errors.New("no access token")
	ErrTokenExpired  = errors.New("access token expired, reconnect required")
	ErrTokenInvalid  = errors.New("access token invalid, reconnect required")
)

// AccountStore reads linked accounts. Implementations only return accounts
// owned by the given user.
type AccountStore interface {
	GetAccountsForUser(ctx context.Context, userID string) ([]models.SocialAccount, error)
	GetAccount(ctx context.Context, accountID, userID string) (*models.SocialAccount, error)
}

// CommentStore appends comments, reporting duplicates through the outcome
type CommentStore interface {
	InsertIfAbsent(ctx context.Context, accountID string, c models.NormalizedComment) (models.InsertOutcome, error)
}

// ResultStore keeps the last result per account
type ResultStore interface {
	SaveResult(ctx context.Context, r Result) error
}

// Coordinator owns the platform clients and runs ingestion for accounts
type Coordinator struct {
	clients  *platform.Registry
	accounts AccountStore
	comments CommentStore
	results  ResultStore
	defaults platform.FetchOptions
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithResultStore records every result produced by SyncAccount and SyncAll
func WithResultStore(s ResultStore) Option {
	return func(c *Coordinator) { c.results = s }
}

// WithFetchDefaults sets the options used for fields a caller leaves unset
func WithFetchDefaults(opts platform.FetchOptions) Option {
	return func(c *Coordinator) { c.defaults = opts }
}

// WithClock overrides the time source used for token expiry and timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a coordinator over the given clients and stores
func NewCoordinator(clients *platform.Registry, accounts AccountStore, comments CommentStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		clients:  clients,
		accounts: accounts,
		comments: comments,
		now:      time.Now,
		logger:   logging.WithComponent("ingest"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) fetchOptions(opts platform.FetchOptions) platform.FetchOptions {
	if opts.Limit <= 0 {
		opts.Limit = c.defaults.Limit
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = c.defaults.MaxPages
	}
	if opts.Since == nil {
		opts.Since = c.defaults.Since
	}
	if opts.Until == nil {
		opts.Until = c.defaults.Until
	}
	return opts.WithDefaults()
}

// IngestForAccount runs one ingestion for account. It never returns an
// error: every failure, including a panic, ends up in Result.Errors.
func (c *Coordinator) IngestForAccount(ctx context.Context, account models.SocialAccount, opts platform.FetchOptions) (result Result) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.account", trace.WithAttributes(
		attribute.String("platform", account.Platform.String()),
		attribute.String("account_id", account.ID),
	))
	defer span.End()

	start := c.now()
	result = newResult(account, start.UTC())

	defer func() {
		if r := recover(); r != nil {
			result.Errors = nil
			result = result.fail(fmt.Errorf("ingestion panicked: %v", r))
			c.logger.Error("Recovered panic during ingestion",
				zap.String("account_id", account.ID),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
		c.finish(ctx, span, result, c.now().Sub(start))
	}()

	client, err := c.precheck(ctx, account)
	if err != nil {
		return result.fail(err)
	}

	raw, err := client.FetchComments(ctx, account.AccessToken.String, c.fetchOptions(opts))
	if err != nil {
		return result.fail(err)
	}
	result.CommentsFound = len(raw)
	if len(raw) == 0 {
		result.Success = true
		return result
	}

	for _, rc := range raw {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("ingestion aborted: %v", err))
			break
		}

		outcome, err := c.comments.InsertIfAbsent(ctx, account.ID, Normalize(rc))
		switch outcome {
		case models.Inserted:
			result.CommentsIngested++
		case models.Duplicate:
			result.CommentsDuplicate++
		default:
			if err == nil {
				err = fmt.Errorf("failed to insert comment %s", rc.ID)
			}
			result.Errors = append(result.Errors, err.Error())
		}
	}
	result.Success = len(result.Errors) == 0
	return result
}

// precheck returns the account's client once every precondition holds.
// Checks run in order and stop at the first failure.
func (c *Coordinator) precheck(ctx context.Context, account models.SocialAccount) (platform.Client, error) {
	client, ok := c.clients.For(account.Platform)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoClient, account.Platform)
	}
	if !account.AccessToken.Valid || account.AccessToken.String == "" {
		return nil, ErrNoAccessToken
	}
	if account.TokenExpired(c.now()) {
		return nil, ErrTokenExpired
	}
	if err := checkToken(ctx, client, account.AccessToken.String); err != nil {
		return nil, err
	}
	return client, nil
}

// checkToken maps only a rejected token to ErrTokenInvalid. Cancellation and
// failed checks keep their own error so the user is not asked to reconnect.
func checkToken(ctx context.Context, client platform.Client, token string) error {
	checker, ok := client.(platform.TokenChecker)
	if !ok {
		if client.ValidateToken(ctx, token) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("token validation aborted: %w", err)
		}
		return ErrTokenInvalid
	}

	err := checker.CheckToken(ctx, token)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("token validation aborted: %w", ctx.Err())
	case errors.Is(err, platform.ErrTokenRejected):
		return ErrTokenInvalid
	default:
		return fmt.Errorf("failed to validate access token: %w", err)
	}
}

func (c *Coordinator) finish(ctx context.Context, span trace.Span, r Result, elapsed time.Duration) {
	span.SetAttributes(
		attribute.Int("comments.found", r.CommentsFound),
		attribute.Int("comments.ingested", r.CommentsIngested),
		attribute.Int("comments.duplicate", r.CommentsDuplicate),
	)
	if !r.Success && len(r.Errors) > 0 {
		span.SetStatus(codes.Error, r.Errors[0])
	}

	telemetry.RecordIngestion(ctx, telemetry.IngestionCounts{
		Platform:  r.Platform.String(),
		Success:   r.Success,
		Found:     r.CommentsFound,
		Ingested:  r.CommentsIngested,
		Duplicate: r.CommentsDuplicate,
		Duration:  elapsed,
	})

	fields := []zap.Field{
		zap.String("platform", r.Platform.String()),
		zap.String("account_id", r.AccountID),
		zap.Int("found", r.CommentsFound),
		zap.Int("ingested", r.CommentsIngested),
		zap.Int("duplicate", r.CommentsDuplicate),
		zap.Duration("duration", elapsed),
	}
	logger := logging.WithTraceID(ctx, c.logger)
	if r.Success {
		logger.Info("Ingested account comments", fields...)
		return
	}
	logger.Warn("Account ingestion failed", append(fields, zap.Strings("errors", r.Errors))...)
}

// IngestForUser ingests every account owned by userID concurrently and
// returns one result per account, in the order the store listed them.
// Only a failure to list the accounts is returned as an error.
func (c *Coordinator) IngestForUser(ctx context.Context, userID string, opts platform.FetchOptions) ([]Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.user", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	accounts, err := c.accounts.GetAccountsForUser(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to load accounts for user %s: %w", userID, err)
	}
	if len(accounts) == 0 {
		return []Result{}, nil
	}

	mapper := iter.Mapper[models.SocialAccount, Result]{MaxGoroutines: len(accounts)}
	return mapper.Map(accounts, func(account *models.SocialAccount) Result {
		return c.IngestForAccount(ctx, *account, opts)
	}), nil
}
