package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Comment is a persisted platform comment. (social_account_id,
// platform_comment_id) is unique: re-ingesting the same comment for the
// same account must never produce a second row.
type Comment struct {
	ID                string            `gorm:"type:uuid;primaryKey;column:id"`
	SocialAccountID   string            `gorm:"type:uuid;not null;uniqueIndex:comments_account_platform_comment_ux,priority:1;index:comments_account_ingested_idx,priority:1;column:social_account_id"`
	PlatformCommentID string            `gorm:"type:varchar(255);not null;uniqueIndex:comments_account_platform_comment_ux,priority:2;column:platform_comment_id"`
	Content           string            `gorm:"type:text;not null;column:content"`
	AuthorName        sql.NullString    `gorm:"type:varchar(255);column:author_name"`
	AuthorHandle      sql.NullString    `gorm:"type:varchar(255);column:author_handle"`
	URL               sql.NullString    `gorm:"type:text;column:url"`
	Metadata          datatypes.JSONMap `gorm:"column:metadata"`
	PostedAt          sql.NullTime      `gorm:"column:posted_at"`
	IngestedAt        time.Time         `gorm:"not null;index:comments_account_ingested_idx,priority:2;column:ingested_at"`
	CreatedAt         time.Time         `gorm:"not null;column:created_at"`
	UpdatedAt         time.Time         `gorm:"not null;column:updated_at"`

	SocialAccount *SocialAccount `gorm:"foreignKey:SocialAccountID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}

// BeforeCreate assigns a UUID and ingestion time when missing
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.IngestedAt.IsZero() {
		c.IngestedAt = tx.NowFunc()
	}
	return nil
}

// CommentStats is the read-side summary of an account's stored comments
type CommentStats struct {
	TotalComments int64      `json:"totalComments"`
	LastSyncAt    *time.Time `json:"lastSyncAt"`
}
