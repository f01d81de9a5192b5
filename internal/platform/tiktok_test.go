package platform

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tiktokVideosFixture = `{
  "data": {
    "videos": [
      {"id": "7300000000000000001", "title": "Dance", "create_time": 1705200000, "share_url": "https://www.tiktok.com/@acme/video/7300000000000000001"},
      {"id": "7300000000000000002", "title": "Recipe", "create_time": 1705100000, "share_url": ""}
    ]
  },
  "error": {"code": "ok", "message": ""}
}`

const tiktokCommentsFixture = `{
  "data": {
    "comments": [
      {"id": "tc1", "text": "so good", "user_id": "u42", "user_name": "Dave", "unique_id": "dave.dances", "create_time": 1705314600, "like_count": 9, "reply_count": 1},
      {"id": "tc2", "text": "who?"}
    ]
  },
  "error": {"code": "ok"}
}`

func TestTikTokClient_FetchComments(t *testing.T) {
	r, srv := newReplay(t, map[string]string{
		"/video/list/":         tiktokVideosFixture,
		"/video/comment/list/": tiktokCommentsFixture,
	})
	client := NewTikTokClient(srv.URL, srv.Client(), testTimeout)

	comments, err := client.FetchComments(context.Background(), "tt-token", FetchOptions{MaxPages: 1})
	require.NoError(t, err)

	metadata := func(likes, replies int64) map[string]interface{} {
		return map[string]interface{}{
			"videoId":    "7300000000000000001",
			"videoTitle": "Dance",
			"likeCount":  likes,
			"replyCount": replies,
		}
	}
	expected := []RawComment{
		{
			ID:        "tc1",
			Text:      "so good",
			Author:    Author{ID: "u42", Name: "Dave", Handle: str("dave.dances")},
			Timestamp: ts("2024-01-15T10:30:00Z"),
			URL:       str("https://www.tiktok.com/@acme/video/7300000000000000001"),
			Metadata:  metadata(9, 1),
		},
		{
			ID:        "tc2",
			Text:      "who?",
			Author:    Author{ID: "unknown", Name: "Unknown User"},
			Timestamp: nil,
			URL:       str("https://www.tiktok.com/@acme/video/7300000000000000001"),
			Metadata:  metadata(0, 0),
		},
	}
	assert.Equal(t, expected, comments)

	list := r.find("/video/list/")
	assert.Equal(t, "Bearer tt-token", list.Header.Get("Authorization"))
	assert.Empty(t, list.URL.Query().Get("access_token"))

	commentsReq := r.find("/video/comment/list/")
	assert.Equal(t, "50", commentsReq.URL.Query().Get("max_count"), "capped at the platform maximum")
	assert.Equal(t, "7300000000000000001", commentsReq.URL.Query().Get("video_id"))
}

func TestTikTokClient_ErrorEnvelope(t *testing.T) {
	t.Run("on video listing is fatal", func(t *testing.T) {
		_, srv := newReplay(t, map[string]string{
			"/video/list/": `{"data": {}, "error": {"code": "scope_not_authorized", "message": "video.list missing"}}`,
		})
		client := NewTikTokClient(srv.URL, srv.Client(), testTimeout)

		_, err := client.FetchComments(context.Background(), "tt-token", FetchOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scope_not_authorized")
	})

	t.Run("on comment listing skips the video", func(t *testing.T) {
		_, srv := newReplay(t, map[string]string{
			"/video/list/":         tiktokVideosFixture,
			"/video/comment/list/": `{"data": {}, "error": {"code": "access_denied"}}`,
		})
		client := NewTikTokClient(srv.URL, srv.Client(), testTimeout)

		comments, err := client.FetchComments(context.Background(), "tt-token", FetchOptions{})
		require.NoError(t, err)
		assert.Empty(t, comments)
	})
}

func TestTikTokClient_Failures(t *testing.T) {
	r, srv := newReplay(t, map[string]string{})
	r.fail("/video/list/", http.StatusUnauthorized)
	client := NewTikTokClient(srv.URL, srv.Client(), testTimeout)

	_, err := client.FetchComments(context.Background(), "tt-token", FetchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch TikTok videos")
}

func TestTikTokClient_NoVideos(t *testing.T) {
	_, srv := newReplay(t, map[string]string{"/video/list/": `{"data": {"videos": []}, "error": {"code": "ok"}}`})
	client := NewTikTokClient(srv.URL, srv.Client(), testTimeout)

	comments, err := client.FetchComments(context.Background(), "tt-token", FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, comments)
}

func TestTikTokClient_ValidateToken(t *testing.T) {
	r, srv := newReplay(t, map[string]string{"/user/info/": `{"data": {"user": {"open_id": "x"}}}`})
	client := NewTikTokClient(srv.URL, srv.Client(), testTimeout)

	assert.True(t, client.ValidateToken(context.Background(), "tt-token"))
	assert.Equal(t, "Bearer tt-token", r.find("/user/info/").Header.Get("Authorization"))

	r.fail("/user/info/", http.StatusUnauthorized)
	assert.False(t, client.ValidateToken(context.Background(), "tt-token"))
}
