// Package platform talks to the social network APIs and turns their
// comment payloads into RawComment values.
package platform

import (
	"context"
	"time"

	"github.com/shieldsocial/commentsync/internal/models"
)

const (
	DefaultLimit    = 100
	DefaultMaxPages = 5

	unknownAuthorID   = "unknown"
	unknownAuthorName = "Unknown User"
)

// Client fetches comments for one platform
type Client interface {
	Platform() models.Platform

	// FetchComments lists the account's content items (at most MaxPages of
	// them) and returns their comments. A failure listing one item's
	// comments skips that item; a failure listing the items is returned.
	FetchComments(ctx context.Context, accessToken string, opts FetchOptions) ([]RawComment, error)

	// ValidateToken performs a minimal authenticated call. It never errors:
	// any non-success response or transport failure is reported as false.
	ValidateToken(ctx context.Context, accessToken string) bool
}

// TokenChecker is implemented by clients that can tell a rejected token
// apart from a check that never got an answer. CheckToken wraps
// ErrTokenRejected only for a non-success response.
type TokenChecker interface {
	CheckToken(ctx context.Context, accessToken string) error
}

// FetchOptions bounds one fetch. Zero values select the defaults.
type FetchOptions struct {
	Limit    int // max comments per content item
	Since    *time.Time
	Until    *time.Time
	MaxPages int // max content items to walk
}

// WithDefaults fills unset fields
func (o FetchOptions) WithDefaults() FetchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// inWindow reports whether a timestamp falls inside [Since, Until]. Comments
// without a timestamp are kept.
func (o FetchOptions) inWindow(ts *time.Time) bool {
	if ts == nil {
		return true
	}
	if o.Since != nil && ts.Before(*o.Since) {
		return false
	}
	if o.Until != nil && ts.After(*o.Until) {
		return false
	}
	return true
}

// Author identifies who wrote a comment, best effort
type Author struct {
	ID     string
	Name   string
	Handle *string
}

// RawComment is a comment as returned by a platform client
type RawComment struct {
	ID        string
	Text      string
	Author    Author
	Timestamp *time.Time // nil when the platform did not report one
	URL       *string
	Metadata  map[string]interface{}
}

func newAuthor(id, name string, handle string) Author {
	a := Author{ID: id, Name: name}
	if a.ID == "" {
		a.ID = unknownAuthorID
	}
	if a.Name == "" {
		a.Name = unknownAuthorName
	}
	a.Handle = optional(handle)
	return a
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
