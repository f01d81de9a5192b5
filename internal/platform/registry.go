package platform

import (
	"net/http"

	"github.com/shieldsocial/commentsync/internal/models"
	"github.com/shieldsocial/commentsync/pkg/config"
)

// Registry holds one client per platform. A nil field means the platform
// has no client configured.
type Registry struct {
	Instagram Client
	Facebook  Client
	YouTube   Client
	TikTok    Client
}

// NewRegistry builds the production clients from configuration
func NewRegistry(cfg *config.PlatformsConfig, httpClient *http.Client) *Registry {
	return &Registry{
		Instagram: NewInstagramClient(cfg.InstagramURL, httpClient, cfg.RequestTimeout),
		Facebook:  NewFacebookClient(cfg.FacebookURL, httpClient, cfg.RequestTimeout),
		YouTube:   NewYouTubeClient(cfg.YouTubeURL, httpClient, cfg.RequestTimeout),
		TikTok:    NewTikTokClient(cfg.TikTokURL, httpClient, cfg.RequestTimeout),
	}
}

// For returns the client for p
func (r *Registry) For(p models.Platform) (Client, bool) {
	if r == nil {
		return nil, false
	}
	var c Client
	switch p {
	case models.PlatformInstagram:
		c = r.Instagram
	case models.PlatformFacebook:
		c = r.Facebook
	case models.PlatformYouTube:
		c = r.YouTube
	case models.PlatformTikTok:
		c = r.TikTok
	}
	return c, c != nil
}
