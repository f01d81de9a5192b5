package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shieldsocial/commentsync/internal/models"
	"github.com/shieldsocial/commentsync/pkg/logging"
	"github.com/shieldsocial/commentsync/pkg/telemetry"
)

const (
	tiktokVideoPage       = 20
	tiktokMaxCommentsPage = 50
)

// TikTokClient reads comments through the TikTok API v2: videos ->
// comments, bearer authentication
type TikTokClient struct {
	baseURL string
	req     requester
	logger  *zap.Logger
}

var (
	_ Client       = (*TikTokClient)(nil)
	_ TokenChecker = (*TikTokClient)(nil)
)

// NewTikTokClient creates a TikTok client rooted at baseURL
func NewTikTokClient(baseURL string, httpClient *http.Client, timeout time.Duration) *TikTokClient {
	return &TikTokClient{
		baseURL: baseURL,
		req:     newRequester(httpClient, timeout),
		logger:  logging.WithComponent("tiktok-client"),
	}
}

// tiktokError is the error envelope TikTok returns alongside HTTP 200
type tiktokError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e tiktokError) err() error {
	if e.Code == "" || e.Code == "ok" {
		return nil
	}
	return fmt.Errorf("tiktok error %s: %s", e.Code, e.Message)
}

type tiktokVideo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	CreateTime int64  `json:"create_time"`
	ShareURL   string `json:"share_url"`
}

type tiktokComment struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	UserID     string `json:"user_id"`
	UserName   string `json:"user_name"`
	UniqueID   string `json:"unique_id"`
	CreateTime int64  `json:"create_time"`
	LikeCount  int64  `json:"like_count"`
	ReplyCount int64  `json:"reply_count"`
}

// Platform implements Client
func (c *TikTokClient) Platform() models.Platform {
	return models.PlatformTikTok
}

// FetchComments implements Client
func (c *TikTokClient) FetchComments(ctx context.Context, accessToken string, opts FetchOptions) ([]RawComment, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.tiktok.fetch_comments")
	defer span.End()

	opts = opts.WithDefaults()

	var videos struct {
		Data struct {
			Videos []tiktokVideo `json:"videos"`
		} `json:"data"`
		Error tiktokError `json:"error"`
	}
	videosURL := c.baseURL + "/video/list/?" + url.Values{
		"fields":    {"id,title,create_time,share_url"},
		"max_count": {strconv.Itoa(tiktokVideoPage)},
	}.Encode()
	if err := c.req.getJSON(ctx, videosURL, bearer(accessToken), &videos); err != nil {
		return nil, fmt.Errorf("failed to fetch TikTok videos: %w", err)
	}
	if err := videos.Error.err(); err != nil {
		return nil, fmt.Errorf("failed to fetch TikTok videos: %w", err)
	}

	comments := []RawComment{}
	for i, video := range videos.Data.Videos {
		if i >= opts.MaxPages {
			break
		}

		videoComments, err := c.fetchVideoComments(ctx, accessToken, video, opts)
		if err != nil {
			// The comment scope is not granted to every developer app
			c.logger.Warn("Skipping video after comment fetch failure",
				zap.String("video_id", video.ID),
				zap.Error(err))
			continue
		}
		comments = append(comments, videoComments...)
	}

	return comments, nil
}

func (c *TikTokClient) fetchVideoComments(ctx context.Context, accessToken string, video tiktokVideo, opts FetchOptions) ([]RawComment, error) {
	var resp struct {
		Data struct {
			Comments []tiktokComment `json:"comments"`
		} `json:"data"`
		Error tiktokError `json:"error"`
	}
	commentsURL := c.baseURL + "/video/comment/list/?" + url.Values{
		"video_id":  {video.ID},
		"max_count": {strconv.Itoa(minInt(opts.Limit, tiktokMaxCommentsPage))},
	}.Encode()
	if err := c.req.getJSON(ctx, commentsURL, bearer(accessToken), &resp); err != nil {
		return nil, err
	}
	if err := resp.Error.err(); err != nil {
		return nil, err
	}

	out := make([]RawComment, 0, len(resp.Data.Comments))
	for _, comment := range resp.Data.Comments {
		if len(out) >= opts.Limit {
			break
		}
		raw := RawComment{
			ID:        comment.ID,
			Text:      comment.Text,
			Author:    newAuthor(comment.UserID, comment.UserName, comment.UniqueID),
			Timestamp: unixTimestamp(comment.CreateTime),
			URL:       optional(video.ShareURL),
			Metadata: map[string]interface{}{
				"videoId":    video.ID,
				"videoTitle": video.Title,
				"likeCount":  comment.LikeCount,
				"replyCount": comment.ReplyCount,
			},
		}
		if !opts.inWindow(raw.Timestamp) {
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

// ValidateToken implements Client
func (c *TikTokClient) ValidateToken(ctx context.Context, accessToken string) bool {
	return c.CheckToken(ctx, accessToken) == nil
}

// CheckToken implements TokenChecker
func (c *TikTokClient) CheckToken(ctx context.Context, accessToken string) error {
	ctx, span := telemetry.StartSpan(ctx, "platform.tiktok.validate_token")
	defer span.End()

	return c.req.check(ctx, c.baseURL+"/user/info/?"+url.Values{
		"fields": {"open_id,display_name"},
	}.Encode(), bearer(accessToken))
}
