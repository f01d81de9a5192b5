package ingest

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/shieldsocial/commentsync/internal/platform"
)

// ErrAccountNotFound is returned when an account does not exist or is not
// owned by the requesting user
var ErrAccountNotFound = errors.New("account not found")

// SyncAllResult is the "sync all" report for one user
type SyncAllResult struct {
	Results []Result `json:"results"`
	Totals  Totals   `json:"totals"`
}

// SyncAccount ingests one account on behalf of userID
func (c *Coordinator) SyncAccount(ctx context.Context, userID, accountID string, opts platform.FetchOptions) (*Result, error) {
	account, err := c.accounts.GetAccount(ctx, accountID, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	result := c.IngestForAccount(ctx, *account, opts)
	c.save(ctx, result)
	return &result, nil
}

// SyncAll ingests every account of userID and sums the results
func (c *Coordinator) SyncAll(ctx context.Context, userID string, opts platform.FetchOptions) (*SyncAllResult, error) {
	results, err := c.IngestForUser(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		c.save(ctx, r)
	}
	return &SyncAllResult{Results: results, Totals: Summarize(results)}, nil
}

// save records r in the result store; failures are only logged
func (c *Coordinator) save(ctx context.Context, r Result) {
	if c.results == nil {
		return
	}
	if err := c.results.SaveResult(ctx, r); err != nil {
		c.logger.Warn("Failed to save ingestion result",
			zap.String("account_id", r.AccountID),
			zap.Error(err))
	}
}
