package ingest

import (
	"github.com/shieldsocial/commentsync/internal/models"
	"github.com/shieldsocial/commentsync/internal/platform"
)

// Normalize maps a platform comment onto the stored shape. It has no side
// effects and never fails.
func Normalize(raw platform.RawComment) models.NormalizedComment {
	metadata := raw.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return models.NormalizedComment{
		PlatformCommentID: raw.ID,
		Content:           raw.Text,
		AuthorName:        raw.Author.Name,
		AuthorHandle:      raw.Author.Handle,
		URL:               raw.URL,
		PostedAt:          raw.Timestamp,
		Metadata:          metadata,
	}
}
