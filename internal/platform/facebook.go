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

// FacebookClient reads Page comments through the Graph API:
// pages -> posts -> comments. Posts and comments are read with the page's
// own access token.
type FacebookClient struct {
	baseURL string
	req     requester
	logger  *zap.Logger
}

var (
	_ Client       = (*FacebookClient)(nil)
	_ TokenChecker = (*FacebookClient)(nil)
)

// NewFacebookClient creates a Facebook client rooted at baseURL
func NewFacebookClient(baseURL string, httpClient *http.Client, timeout time.Duration) *FacebookClient {
	return &FacebookClient{
		baseURL: baseURL,
		req:     newRequester(httpClient, timeout),
		logger:  logging.WithComponent("facebook-client"),
	}
}

type facebookPage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

type facebookPost struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
}

type facebookComment struct {
	ID   string `json:"id"`
	From *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
}

// Platform implements Client
func (c *FacebookClient) Platform() models.Platform {
	return models.PlatformFacebook
}

// FetchComments implements Client. Only the first managed page is read.
func (c *FacebookClient) FetchComments(ctx context.Context, accessToken string, opts FetchOptions) ([]RawComment, error) {
	ctx, span := telemetry.StartSpan(ctx, "platform.facebook.fetch_comments")
	defer span.End()

	opts = opts.WithDefaults()

	var pages struct {
		Data []facebookPage `json:"data"`
	}
	pagesURL := c.baseURL + "/me/accounts?" + url.Values{"access_token": {accessToken}}.Encode()
	if err := c.req.getJSON(ctx, pagesURL, nil, &pages); err != nil {
		return nil, fmt.Errorf("failed to fetch Facebook pages: %w", err)
	}
	if len(pages.Data) == 0 {
		return []RawComment{}, nil
	}

	page := pages.Data[0]
	pageToken := page.AccessToken
	if pageToken == "" {
		pageToken = accessToken
	}

	postsQuery := url.Values{
		"fields":       {"id,message,created_time,permalink_url"},
		"limit":        {"25"},
		"access_token": {pageToken},
	}
	if opts.Since != nil {
		postsQuery.Set("since", strconv.FormatInt(opts.Since.Unix(), 10))
	}
	if opts.Until != nil {
		postsQuery.Set("until", strconv.FormatInt(opts.Until.Unix(), 10))
	}

	var posts struct {
		Data []facebookPost `json:"data"`
	}
	postsURL := c.baseURL + "/" + url.PathEscape(page.ID) + "/posts?" + postsQuery.Encode()
	if err := c.req.getJSON(ctx, postsURL, nil, &posts); err != nil {
		return nil, fmt.Errorf("failed to fetch Facebook posts: %w", err)
	}

	comments := []RawComment{}
	for i, post := range posts.Data {
		if i >= opts.MaxPages {
			break
		}

		postComments, err := c.fetchPostComments(ctx, pageToken, page, post, opts)
		if err != nil {
			c.logger.Warn("Skipping post after comment fetch failure",
				zap.String("post_id", post.ID),
				zap.Error(err))
			continue
		}
		comments = append(comments, postComments...)
	}

	return comments, nil
}

func (c *FacebookClient) fetchPostComments(ctx context.Context, pageToken string, page facebookPage, post facebookPost, opts FetchOptions) ([]RawComment, error) {
	var resp struct {
		Data []facebookComment `json:"data"`
	}
	commentsURL := c.baseURL + "/" + url.PathEscape(post.ID) + "/comments?" + url.Values{
		"fields":       {"id,message,from,created_time,permalink_url"},
		"limit":        {strconv.Itoa(opts.Limit)},
		"access_token": {pageToken},
	}.Encode()
	if err := c.req.getJSON(ctx, commentsURL, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]RawComment, 0, len(resp.Data))
	for _, comment := range resp.Data {
		if len(out) >= opts.Limit {
			break
		}

		var authorID, authorName string
		if comment.From != nil {
			authorID, authorName = comment.From.ID, comment.From.Name
		}
		link := comment.PermalinkURL
		if link == "" {
			link = post.PermalinkURL
		}

		out = append(out, RawComment{
			ID:        comment.ID,
			Text:      comment.Message,
			Author:    newAuthor(authorID, authorName, ""),
			Timestamp: parseTimestamp(comment.CreatedTime),
			URL:       optional(link),
			Metadata: map[string]interface{}{
				"postId":      post.ID,
				"postMessage": post.Message,
				"pageId":      page.ID,
				"pageName":    page.Name,
			},
		})
	}
	return out, nil
}

// ValidateToken implements Client
func (c *FacebookClient) ValidateToken(ctx context.Context, accessToken string) bool {
	return c.CheckToken(ctx, accessToken) == nil
}

// CheckToken implements TokenChecker
func (c *FacebookClient) CheckToken(ctx context.Context, accessToken string) error {
	ctx, span := telemetry.StartSpan(ctx, "platform.facebook.validate_token")
	defer span.End()

	return c.req.check(ctx, c.baseURL+"/me?"+url.Values{"access_token": {accessToken}}.Encode(), nil)
}
