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
	youtubeWatchURL       = "https://www.youtube.com/watch"
	youtubeMaxThreadsPage = 100
)

// YouTubeClient reads top-level comments through the YouTube Data API v3:
// channel -> videos -> comment threads
type YouTubeClient struct {
	baseURL string
	req     requester
	logger  *zap.Logger
}

var (
	_ Client       = (*YouTubeClient)(nil)
	_ TokenChecker = (*YouTubeClient)(nil)
)

// NewYouTubeClient creates a YouTube client rooted at baseURL
func NewYouTubeClient(baseURL string, httpClient *http.Client, timeout time.Duration) *YouTubeClient {
	return &YouTubeClient{
		baseURL: baseURL,
		req:     newRequester(httpClient, timeout),
		logger:  logging.WithComponent("youtube-client"),
	}
}

type youtubeThread struct {
	ID      string `json:"id"`
	Snippet struct {
		TopLevelComment struct {
			ID      string `json:"id"`
			Snippet struct {
				TextDisplay       string `json:"textDisplay"`
				AuthorDisplayName string `json:"authorDisplayName"`
				AuthorChannelID   *struct {
					Value string `json:"value"`
				} `json:"authorChannelId"`
				LikeCount   int64  `json:"likeCount"`
				PublishedAt string `json:"publishedAt"`
				UpdatedAt   string `json:"updatedAt"`
			} `json:"snippet"`
		} `json:"topLevelComment"`
		TotalReplyCount int64 `json:"totalReplyCount"`
	} `json:"snippet"`
}

// Platform implements Client
func (c *YouTubeClient) Platform() models.Platform {
	return models.PlatformYouTube
}

// FetchComments implements Client
func (c *YouTubeClient) FetchComments(ctx context.Context, accessToken string, opts FetchOptions) ([]RawComment, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.youtube.fetch_comments")
	defer span.End()

	opts = opts.WithDefaults()

	var channels struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	channelURL := c.baseURL + "/channels?" + url.Values{
		"part":         {"id,snippet"},
		"mine":         {"true"},
		"access_token": {accessToken},
	}.Encode()
	if err := c.req.getJSON(ctx, channelURL, nil, &channels); err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube channel: %w", err)
	}
	if len(channels.Items) == 0 {
		return []RawComment{}, nil
	}
	channelID := channels.Items[0].ID

	var videos struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
		} `json:"items"`
	}
	videosURL := c.baseURL + "/search?" + url.Values{
		"part":         {"id"},
		"channelId":    {channelID},
		"type":         {"video"},
		"order":        {"date"},
		"maxResults":   {"25"},
		"access_token": {accessToken},
	}.Encode()
	if err := c.req.getJSON(ctx, videosURL, nil, &videos); err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube videos: %w", err)
	}

	comments := []RawComment{}
	walked := 0
	for _, item := range videos.Items {
		if walked >= opts.MaxPages {
			break
		}
		videoID := item.ID.VideoID
		if videoID == "" {
			continue
		}
		walked++

		videoComments, err := c.fetchVideoComments(ctx, accessToken, videoID, opts)
		if err != nil {
			// Comments may simply be disabled on this video
			c.logger.Warn("Skipping video after comment fetch failure",
				zap.String("video_id", videoID),
				zap.Error(err))
			continue
		}
		comments = append(comments, videoComments...)
	}

	return comments, nil
}

func (c *YouTubeClient) fetchVideoComments(ctx context.Context, accessToken, videoID string, opts FetchOptions) ([]RawComment, error) {
	var resp struct {
		Items []youtubeThread `json:"items"`
	}
	threadsURL := c.baseURL + "/commentThreads?" + url.Values{
		"part":         {"snippet"},
		"videoId":      {videoID},
		"maxResults":   {strconv.Itoa(minInt(opts.Limit, youtubeMaxThreadsPage))},
		"textFormat":   {"plainText"},
		"access_token": {accessToken},
	}.Encode()
	if err := c.req.getJSON(ctx, threadsURL, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]RawComment, 0, len(resp.Items))
	for _, thread := range resp.Items {
		if len(out) >= opts.Limit {
			break
		}

		top := thread.Snippet.TopLevelComment
		var authorID string
		if top.Snippet.AuthorChannelID != nil {
			authorID = top.Snippet.AuthorChannelID.Value
		}
		link := youtubeWatchURL + "?" + url.Values{"v": {videoID}, "lc": {top.ID}}.Encode()

		raw := RawComment{
			ID:        top.ID,
			Text:      top.Snippet.TextDisplay,
			Author:    newAuthor(authorID, top.Snippet.AuthorDisplayName, ""),
			Timestamp: parseTimestamp(top.Snippet.PublishedAt),
			URL:       &link,
			Metadata: map[string]interface{}{
				"videoId":    videoID,
				"likeCount":  top.Snippet.LikeCount,
				"replyCount": thread.Snippet.TotalReplyCount,
				"updatedAt":  top.Snippet.UpdatedAt,
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
func (c *YouTubeClient) ValidateToken(ctx context.Context, accessToken string) bool {
	return c.CheckToken(ctx, accessToken) == nil
}

// CheckToken implements TokenChecker
func (c *YouTubeClient) CheckToken(ctx context.Context, accessToken string) error {
	ctx, span := telemetry.StartSpan(ctx, "platform.youtube.validate_token")
	defer span.End()

	return c.req.check(ctx, c.baseURL+"/channels?"+url.Values{
		"part":         {"id"},
		"mine":         {"true"},
		"access_token": {accessToken},
	}.Encode(), nil)
}
