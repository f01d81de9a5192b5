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

// InstagramClient reads comments through the Instagram Graph API:
// media -> comments, token passed as a query parameter
type InstagramClient struct {
	baseURL string
	req     requester
	logger  *zap.Logger
}

var (
	_ Client       = (*InstagramClient)(nil)
	_ TokenChecker = (*InstagramClient)(nil)
)

// NewInstagramClient creates an Instagram client rooted at baseURL
func NewInstagramClient(baseURL string, httpClient *http.Client, timeout time.Duration) *InstagramClient {
	return &InstagramClient{
		baseURL: baseURL,
		req:     newRequester(httpClient, timeout),
		logger:  logging.WithComponent("instagram-client"),
	}
}

type instagramMedia struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	MediaType string `json:"media_type"`
	Timestamp string `json:"timestamp"`
	Permalink string `json:"permalink"`
}

type instagramComment struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// Platform implements Client
func (c *InstagramClient) Platform() models.Platform {
	return models.PlatformInstagram
}

// FetchComments implements Client
func (c *InstagramClient) FetchComments(ctx context.Context, accessToken string, opts FetchOptions) ([]RawComment, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.instagram.fetch_comments")
	defer span.End()

	opts = opts.WithDefaults()

	var media struct {
		Data []instagramMedia `json:"data"`
	}
	mediaURL := c.baseURL + "/me/media?" + url.Values{
		"fields":       {"id,caption,media_type,timestamp,permalink"},
		"limit":        {strconv.Itoa(minInt(opts.Limit, 25))},
		"access_token": {accessToken},
	}.Encode()
	if err := c.req.getJSON(ctx, mediaURL, nil, &media); err != nil {
		return nil, fmt.Errorf("failed to fetch Instagram media: %w", err)
	}

	comments := []RawComment{}
	for i, item := range media.Data {
		if i >= opts.MaxPages {
			break
		}

		itemComments, err := c.fetchMediaComments(ctx, accessToken, item, opts)
		if err != nil {
			c.logger.Warn("Skipping media after comment fetch failure",
				zap.String("media_id", item.ID),
				zap.Error(err))
			continue
		}
		comments = append(comments, itemComments...)
	}

	return comments, nil
}

func (c *InstagramClient) fetchMediaComments(ctx context.Context, accessToken string, media instagramMedia, opts FetchOptions) ([]RawComment, error) {
	var resp struct {
		Data []instagramComment `json:"data"`
	}
	commentsURL := c.baseURL + "/" + url.PathEscape(media.ID) + "/comments?" + url.Values{
		"fields":       {"id,text,username,timestamp"},
		"limit":        {strconv.Itoa(opts.Limit)},
		"access_token": {accessToken},
	}.Encode()
	if err := c.req.getJSON(ctx, commentsURL, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]RawComment, 0, len(resp.Data))
	for _, comment := range resp.Data {
		if len(out) >= opts.Limit {
			break
		}
		raw := RawComment{
			ID:        comment.ID,
			Text:      comment.Text,
			Author:    newAuthor(comment.Username, comment.Username, comment.Username),
			Timestamp: parseTimestamp(comment.Timestamp),
			URL:       optional(media.Permalink),
			Metadata: map[string]interface{}{
				"mediaId":      media.ID,
				"mediaType":    media.MediaType,
				"mediaCaption": media.Caption,
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
func (c *InstagramClient) ValidateToken(ctx context.Context, accessToken string) bool {
	return c.CheckToken(ctx, accessToken) == nil
}

// CheckToken implements TokenChecker
func (c *InstagramClient) CheckToken(ctx context.Context, accessToken string) error {
	ctx, span := telemetry.StartSpan(ctx, "platform.instagram.validate_token")
	defer span.End()

	return c.req.check(ctx, c.baseURL+"/me?"+url.Values{
		"fields":       {"id,username"},
		"access_token": {accessToken},
	}.Encode(), nil)
}
