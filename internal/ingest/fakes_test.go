package ingest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/shieldsocial/commentsync/internal/models"
	"github.com/shieldsocial/commentsync/internal/platform"
)

var fixedNow = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)

type fakeClient struct {
	mu        sync.Mutex
	platform  models.Platform
	comments  []platform.RawComment
	fetchErr  error
	invalid   bool
	panics    bool
	validated int
	fetched   int
	lastOpts  platform.FetchOptions
}

func (f *fakeClient) Platform() models.Platform { return f.platform }

func (f *fakeClient) FetchComments(ctx context.Context, accessToken string, opts platform.FetchOptions) ([]platform.RawComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched++
	f.lastOpts = opts
	if f.panics {
		panic("unexpected payload")
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.comments, nil
}

func (f *fakeClient) ValidateToken(ctx context.Context, accessToken string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated++
	return !f.invalid
}

func (f *fakeClient) calls() (validated, fetched int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validated, f.fetched
}

// memStore is an in-memory account, comment and result store keyed the
// same way as the database
type memStore struct {
	mu       sync.Mutex
	accounts []models.SocialAccount
	comments map[string]models.NormalizedComment
	failing  map[string]bool
	panicOn  string
	results  map[string]Result
	listErr  error
}

func newMemStore(accounts ...models.SocialAccount) *memStore {
	return &memStore{
		accounts: accounts,
		comments: map[string]models.NormalizedComment{},
		failing:  map[string]bool{},
		results:  map[string]Result{},
	}
}

func (s *memStore) GetAccountsForUser(ctx context.Context, userID string) ([]models.SocialAccount, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.SocialAccount
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) GetAccount(ctx context.Context, accountID, userID string) (*models.SocialAccount, error) {
	for _, a := range s.accounts {
		if a.ID == accountID && a.UserID == userID {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListUserIDs(ctx context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	seen := map[string]bool{}
	var ids []string
	for _, a := range s.accounts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	return ids, nil
}

func (s *memStore) InsertIfAbsent(ctx context.Context, accountID string, c models.NormalizedComment) (models.InsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOn != "" && s.panicOn == c.PlatformCommentID {
		panic("corrupt row " + c.PlatformCommentID)
	}
	if s.failing[c.PlatformCommentID] {
		return models.InsertFailed, errors.New("failed to insert comment " + c.PlatformCommentID + ": connection reset")
	}
	key := accountID + "/" + c.PlatformCommentID
	if _, ok := s.comments[key]; ok {
		return models.Duplicate, nil
	}
	s.comments[key] = c
	return models.Inserted, nil
}

func (s *memStore) SaveResult(ctx context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.AccountID] = r
	return nil
}

func (s *memStore) stored() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.comments)
}

func account(id, userID string, p models.Platform) models.SocialAccount {
	return models.SocialAccount{
		ID:          id,
		UserID:      userID,
		Platform:    p,
		AccessToken: sql.NullString{String: "token-" + id, Valid: true},
	}
}

func rawComments(ids ...string) []platform.RawComment {
	out := make([]platform.RawComment, 0, len(ids))
	for _, id := range ids {
		out = append(out, platform.RawComment{
			ID:     id,
			Text:   "text " + id,
			Author: platform.Author{ID: "a-" + id, Name: "Author " + id},
		})
	}
	return out
}
