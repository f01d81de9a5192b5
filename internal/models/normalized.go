package models

import (
	"fmt"
	"time"
)

// NormalizedComment is the canonical, platform-independent shape of a
// fetched comment, ready to be persisted
type NormalizedComment struct {
	PlatformCommentID string
	Content           string
	AuthorName        string
	AuthorHandle      *string
	URL               *string
	PostedAt          *time.Time
	Metadata          map[string]interface{}
}

// InsertOutcome classifies one insert-if-absent attempt
type InsertOutcome int

const (
	InsertFailed InsertOutcome = iota
	Inserted
	Duplicate
)

func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	case InsertFailed:
		return "failed"
	}
	return fmt.Sprintf("InsertOutcome(%d)", int(o))
}
