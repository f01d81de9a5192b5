package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldsocial/commentsync/internal/models"
	"github.com/shieldsocial/commentsync/internal/platform"
)

func TestSummarize(t *testing.T) {
	results := []Result{
		{CommentsFound: 5, CommentsIngested: 3, CommentsDuplicate: 2, Errors: []string{}},
		{CommentsFound: 4, CommentsIngested: 1, CommentsDuplicate: 1, Errors: []string{"a", "b"}},
		{Errors: []string{"access token expired, reconnect required"}},
	}

	assert.Equal(t, Totals{Found: 9, Ingested: 4, Duplicates: 3, Errors: 3}, Summarize(results))
	assert.Equal(t, Totals{}, Summarize(nil))
}

func TestNormalize(t *testing.T) {
	posted := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	handle := "alice"
	link := "https://www.instagram.com/p/AAA/"

	got := Normalize(platform.RawComment{
		ID:        "c1",
		Text:      "Love it",
		Author:    platform.Author{ID: "alice", Name: "Alice", Handle: &handle},
		Timestamp: &posted,
		URL:       &link,
		Metadata:  map[string]interface{}{"mediaId": "m1"},
	})
	assert.Equal(t, models.NormalizedComment{
		PlatformCommentID: "c1",
		Content:           "Love it",
		AuthorName:        "Alice",
		AuthorHandle:      &handle,
		URL:               &link,
		PostedAt:          &posted,
		Metadata:          map[string]interface{}{"mediaId": "m1"},
	}, got)

	bare := Normalize(platform.RawComment{ID: "c2", Author: platform.Author{Name: "Unknown User"}})
	assert.Nil(t, bare.AuthorHandle)
	assert.Nil(t, bare.URL)
	assert.Nil(t, bare.PostedAt)
	assert.NotNil(t, bare.Metadata)
	assert.Empty(t, bare.Metadata)
}

func TestSyncAccount(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{platform: models.PlatformFacebook, comments: rawComments("c1", "c2")}
	store := newMemStore(account("acct-1", "user-1", models.PlatformFacebook))
	coord := newTestCoordinator(&platform.Registry{Facebook: client}, store, WithResultStore(store))

	t.Run("owner", func(t *testing.T) {
		result, err := coord.SyncAccount(ctx, "user-1", "acct-1", platform.FetchOptions{})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 2, result.CommentsIngested)
		assert.Equal(t, *result, store.results["acct-1"])
	})

	t.Run("not owner", func(t *testing.T) {
		result, err := coord.SyncAccount(ctx, "user-2", "acct-1", platform.FetchOptions{})
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.Nil(t, result)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := coord.SyncAccount(ctx, "user-1", "acct-404", platform.FetchOptions{})
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})
}

func TestSyncAll(t *testing.T) {
	reg := &platform.Registry{
		Instagram: &fakeClient{platform: models.PlatformInstagram, comments: rawComments("c1", "c2", "c3")},
		TikTok:    &fakeClient{platform: models.PlatformTikTok, invalid: true},
	}
	store := newMemStore(
		account("acct-ig", "user-1", models.PlatformInstagram),
		account("acct-tt", "user-1", models.PlatformTikTok),
	)
	coord := newTestCoordinator(reg, store, WithResultStore(store))

	report, err := coord.SyncAll(context.Background(), "user-1", platform.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, Totals{Found: 3, Ingested: 3, Duplicates: 0, Errors: 1}, report.Totals)
	assert.Len(t, store.results, 2)
	assert.False(t, store.results["acct-tt"].Success)

	again, err := coord.SyncAll(context.Background(), "user-1", platform.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, Totals{Found: 3, Ingested: 0, Duplicates: 3, Errors: 1}, again.Totals)
}
