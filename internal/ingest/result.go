package ingest

import (
	"time"

	"github.com/shieldsocial/commentsync/internal/models"
)

// Result is the outcome of one ingestion run for one account. It is built
// fresh per run and not mutated after it is returned.
type Result struct {
	Success           bool            `json:"success"`
	Platform          models.Platform `json:"platform"`
	AccountID         string          `json:"accountId"`
	CommentsFound     int             `json:"commentsFound"`
	CommentsIngested  int             `json:"commentsIngested"`
	CommentsDuplicate int             `json:"commentsDuplicate"`
	Errors            []string        `json:"errors"`
	LastSyncAt        time.Time       `json:"lastSyncAt"`
}

func newResult(account models.SocialAccount, now time.Time) Result {
	return Result{
		Platform:   account.Platform,
		AccountID:  account.ID,
		Errors:     []string{},
		LastSyncAt: now,
	}
}

// fail turns r into a terminal failure carrying a single error
func (r Result) fail(err error) Result {
	r.Success = false
	r.Errors = append(r.Errors, err.Error())
	return r
}

// Totals sums results across accounts. Errors counts error strings, not
// failed accounts.
type Totals struct {
	Found      int `json:"found"`
	Ingested   int `json:"ingested"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// Summarize reduces per-account results into totals
func Summarize(results []Result) Totals {
	var t Totals
	for _, r := range results {
		t.Found += r.CommentsFound
		t.Ingested += r.CommentsIngested
		t.Duplicates += r.CommentsDuplicate
		t.Errors += len(r.Errors)
	}
	return t
}
