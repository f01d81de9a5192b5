package ingest

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldsocial/commentsync/internal/models"
	"github.com/shieldsocial/commentsync/internal/platform"
)

func newTestCoordinator(reg *platform.Registry, store *memStore, opts ...Option) *Coordinator {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewCoordinator(reg, store, store, opts...)
}

func TestIngestForAccount_IdempotentResync(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{platform: models.PlatformInstagram, comments: rawComments("c1", "c2", "c3")}
	store := newMemStore()
	coord := newTestCoordinator(&platform.Registry{Instagram: client}, store)
	acct := account("acct-1", "user-1", models.PlatformInstagram)

	first := coord.IngestForAccount(ctx, acct, platform.FetchOptions{})
	assert.True(t, first.Success)
	assert.Equal(t, 3, first.CommentsFound)
	assert.Equal(t, 3, first.CommentsIngested)
	assert.Equal(t, 0, first.CommentsDuplicate)
	assert.Empty(t, first.Errors)

	second := coord.IngestForAccount(ctx, acct, platform.FetchOptions{})
	assert.True(t, second.Success)
	assert.Equal(t, 3, second.CommentsFound)
	assert.Equal(t, 0, second.CommentsIngested)
	assert.Equal(t, second.CommentsFound, second.CommentsDuplicate)
	assert.Equal(t, 3, store.stored())
}

func TestIngestForAccount_EmptyIsSuccess(t *testing.T) {
	client := &fakeClient{platform: models.PlatformYouTube}
	coord := newTestCoordinator(&platform.Registry{YouTube: client}, newMemStore())

	result := coord.IngestForAccount(context.Background(), account("acct-1", "user-1", models.PlatformYouTube), platform.FetchOptions{})

	assert.Equal(t, Result{
		Success:    true,
		Platform:   models.PlatformYouTube,
		AccountID:  "acct-1",
		Errors:     []string{},
		LastSyncAt: fixedNow,
	}, result)
}

func TestIngestForAccount_Preconditions(t *testing.T) {
	expired := account("acct-1", "user-1", models.PlatformFacebook)
	expired.TokenExpiresAt = sql.NullTime{Time: fixedNow.Add(-time.Minute), Valid: true}

	noToken := account("acct-1", "user-1", models.PlatformFacebook)
	noToken.AccessToken = sql.NullString{}

	// TikTok has no client below, so its expiry must never be reported
	expiredTikTok := account("acct-1", "user-1", models.PlatformTikTok)
	expiredTikTok.TokenExpiresAt = expired.TokenExpiresAt

	tests := []struct {
		name          string
		account       models.SocialAccount
		invalid       bool
		wantErr       error
		wantMessage   string
		wantValidated int
	}{
		{
			name:        "no client",
			account:     expiredTikTok,
			wantErr:     ErrNoClient,
			wantMessage: "no client for platform: tiktok",
		},
		{
			name:        "no access token",
			account:     noToken,
			wantErr:     ErrNoAccessToken,
			wantMessage: "no access token",
		},
		{
			name:        "expired token",
			account:     expired,
			invalid:     true,
			wantErr:     ErrTokenExpired,
			wantMessage: "access token expired, reconnect required",
		},
		{
			name:          "invalid token",
			account:       account("acct-1", "user-1", models.PlatformFacebook),
			invalid:       true,
			wantErr:       ErrTokenInvalid,
			wantMessage:   "access token invalid, reconnect required",
			wantValidated: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{platform: models.PlatformFacebook, invalid: tt.invalid, comments: rawComments("c1")}
			store := newMemStore()
			coord := newTestCoordinator(&platform.Registry{Facebook: client}, store)

			result := coord.IngestForAccount(context.Background(), tt.account, platform.FetchOptions{})

			assert.False(t, result.Success)
			assert.Equal(t, []string{tt.wantMessage}, result.Errors)
			validated, _ := client.calls()
			assert.Equal(t, tt.wantValidated, validated)

			_, err := coord.precheck(context.Background(), tt.account)
			assert.ErrorIs(t, err, tt.wantErr)
			_, fetched := client.calls()
			assert.Zero(t, fetched)
			assert.Zero(t, store.stored())
		})
	}
}

func TestIngestForAccount_FutureExpiryIsValid(t *testing.T) {
	acct := account("acct-1", "user-1", models.PlatformInstagram)
	acct.TokenExpiresAt = sql.NullTime{Time: fixedNow.Add(time.Hour), Valid: true}
	client := &fakeClient{platform: models.PlatformInstagram, comments: rawComments("c1")}
	coord := newTestCoordinator(&platform.Registry{Instagram: client}, newMemStore())

	result := coord.IngestForAccount(context.Background(), acct, platform.FetchOptions{})
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.CommentsIngested)
}

func TestIngestForAccount_FetchFailure(t *testing.T) {
	client := &fakeClient{
		platform: models.PlatformInstagram,
		fetchErr: errors.New("failed to fetch Instagram media: upstream returned 500 Internal Server Error"),
	}
	coord := newTestCoordinator(&platform.Registry{Instagram: client}, newMemStore())

	result := coord.IngestForAccount(context.Background(), account("acct-1", "user-1", models.PlatformInstagram), platform.FetchOptions{})

	assert.False(t, result.Success)
	assert.Equal(t, []string{"failed to fetch Instagram media: upstream returned 500 Internal Server Error"}, result.Errors)
	assert.Zero(t, result.CommentsFound)
}

func TestIngestForAccount_PersistenceErrors(t *testing.T) {
	client := &fakeClient{platform: models.PlatformTikTok, comments: rawComments("c1", "c2", "c3", "c4")}
	store := newMemStore()
	store.failing["c2"] = true
	store.failing["c4"] = true
	coord := newTestCoordinator(&platform.Registry{TikTok: client}, store)

	result := coord.IngestForAccount(context.Background(), account("acct-1", "user-1", models.PlatformTikTok), platform.FetchOptions{})

	assert.False(t, result.Success)
	assert.Equal(t, 4, result.CommentsFound)
	assert.Equal(t, 2, result.CommentsIngested)
	assert.Equal(t, 0, result.CommentsDuplicate)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "c2")
	assert.Contains(t, result.Errors[1], "c4")
}

func TestIngestForAccount_RecoversPanic(t *testing.T) {
	client := &fakeClient{platform: models.PlatformYouTube, panics: true}
	coord := newTestCoordinator(&platform.Registry{YouTube: client}, newMemStore())

	var result Result
	require.NotPanics(t, func() {
		result = coord.IngestForAccount(context.Background(), account("acct-1", "user-1", models.PlatformYouTube), platform.FetchOptions{})
	})
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected payload")
}

func TestIngestForAccount_PanicWhilePersisting(t *testing.T) {
	client := &fakeClient{platform: models.PlatformTikTok, comments: rawComments("c1", "c2", "c3")}
	store := newMemStore()
	store.failing["c1"] = true
	store.panicOn = "c2"
	coord := newTestCoordinator(&platform.Registry{TikTok: client}, store)

	result := coord.IngestForAccount(context.Background(), account("acct-1", "user-1", models.PlatformTikTok), platform.FetchOptions{})

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ingestion panicked: corrupt row c2")
}

func TestIngestForAccount_CancelledContext(t *testing.T) {
	client := &fakeClient{platform: models.PlatformInstagram, comments: rawComments("c1", "c2")}
	store := newMemStore()
	coord := newTestCoordinator(&platform.Registry{Instagram: client}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := coord.IngestForAccount(ctx, account("acct-1", "user-1", models.PlatformInstagram), platform.FetchOptions{})

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], context.Canceled.Error())
	assert.Zero(t, store.stored())
}

func TestIngestForAccount_FetchOptions(t *testing.T) {
	client := &fakeClient{platform: models.PlatformInstagram}
	coord := newTestCoordinator(&platform.Registry{Instagram: client}, newMemStore(),
		WithFetchDefaults(platform.FetchOptions{Limit: 40, MaxPages: 2}))
	acct := account("acct-1", "user-1", models.PlatformInstagram)

	coord.IngestForAccount(context.Background(), acct, platform.FetchOptions{})
	assert.Equal(t, 40, client.lastOpts.Limit)
	assert.Equal(t, 2, client.lastOpts.MaxPages)

	coord.IngestForAccount(context.Background(), acct, platform.FetchOptions{Limit: 10})
	assert.Equal(t, 10, client.lastOpts.Limit)
	assert.Equal(t, 2, client.lastOpts.MaxPages)

	bare := newTestCoordinator(&platform.Registry{Instagram: client}, newMemStore())
	bare.IngestForAccount(context.Background(), acct, platform.FetchOptions{})
	assert.Equal(t, platform.DefaultLimit, client.lastOpts.Limit)
	assert.Equal(t, platform.DefaultMaxPages, client.lastOpts.MaxPages)
}

func TestIngestForUser_AccountIsolation(t *testing.T) {
	valid := account("acct-a", "user-1", models.PlatformInstagram)
	expired := account("acct-b", "user-1", models.PlatformYouTube)
	expired.TokenExpiresAt = sql.NullTime{Time: fixedNow.Add(-24 * time.Hour), Valid: true}
	other := account("acct-c", "user-2", models.PlatformInstagram)

	reg := &platform.Registry{
		Instagram: &fakeClient{platform: models.PlatformInstagram, comments: rawComments("c1", "c2")},
		YouTube:   &fakeClient{platform: models.PlatformYouTube, comments: rawComments("y1")},
	}
	store := newMemStore(valid, expired, other)
	coord := newTestCoordinator(reg, store)

	results, err := coord.IngestForUser(context.Background(), "user-1", platform.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "acct-a", results[0].AccountID)
	assert.True(t, results[0].Success)
	assert.Equal(t, 2, results[0].CommentsIngested)

	assert.Equal(t, "acct-b", results[1].AccountID)
	assert.False(t, results[1].Success)
	require.Len(t, results[1].Errors, 1)
	assert.Contains(t, results[1].Errors[0], "expired")
}

func TestIngestForUser_PreservesOrder(t *testing.T) {
	var accounts []models.SocialAccount
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"} {
		accounts = append(accounts, account(id, "user-1", models.PlatformTikTok))
	}
	reg := &platform.Registry{TikTok: &fakeClient{platform: models.PlatformTikTok, comments: rawComments("c1")}}
	coord := newTestCoordinator(reg, newMemStore(accounts...))

	results, err := coord.IngestForUser(context.Background(), "user-1", platform.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, results, len(accounts))
	for i, r := range results {
		assert.Equal(t, accounts[i].ID, r.AccountID)
		assert.Equal(t, 1, r.CommentsIngested, "dedup key includes the account")
	}
}

func TestIngestForUser_ListFailure(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("connection refused")
	coord := newTestCoordinator(&platform.Registry{}, store)

	results, err := coord.IngestForUser(context.Background(), "user-1", platform.FetchOptions{})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIngestForUser_NoAccounts(t *testing.T) {
	coord := newTestCoordinator(&platform.Registry{}, newMemStore())

	results, err := coord.IngestForUser(context.Background(), "user-1", platform.FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
