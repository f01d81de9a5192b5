package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SocialAccount is one linked platform identity for one user. Rows are
// written by the OAuth callback and only read during ingestion.
type SocialAccount struct {
	ID             string         `gorm:"type:uuid;primaryKey;column:id"`
	UserID         string         `gorm:"type:uuid;not null;uniqueIndex:social_accounts_user_platform_ux,priority:1;column:user_id"`
	Platform       Platform       `gorm:"type:varchar(16);not null;uniqueIndex:social_accounts_user_platform_ux,priority:2;column:platform"`
	PlatformUserID sql.NullString `gorm:"type:varchar(255);column:platform_user_id"`
	AccessToken    sql.NullString `gorm:"type:text;column:access_token"`
	RefreshToken   sql.NullString `gorm:"type:text;column:refresh_token"`
	TokenExpiresAt sql.NullTime   `gorm:"column:token_expires_at"`
	CreatedAt      time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt      time.Time      `gorm:"not null;column:updated_at"`
}

// TableName specifies the table name for SocialAccount
func (SocialAccount) TableName() string {
	return "social_accounts"
}

// BeforeCreate assigns a UUID when the caller did not and rejects unknown
// platforms
func (a *SocialAccount) BeforeCreate(tx *gorm.DB) error {
	if !a.Platform.Valid() {
		return fmt.Errorf("unknown platform %q", a.Platform)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// TokenExpired reports whether the stored token has a known expiry before now
func (a *SocialAccount) TokenExpired(now time.Time) bool {
	return a.TokenExpiresAt.Valid && a.TokenExpiresAt.Time.Before(now)
}
