package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/shieldsocial/commentsync/internal/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AccountRepository provides social account queries
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(repo *Repository) *AccountRepository {
	return &AccountRepository{Repository: repo}
}

// GetAccountsForUser returns every account owned by userID, oldest first
func (r *AccountRepository) GetAccountsForUser(ctx context.Context, userID string) ([]models.SocialAccount, error) {
	var accounts []models.SocialAccount
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch social accounts: %w", err)
	}
	return accounts, nil
}

// GetAccount retrieves an account only if userID owns it. Returns nil, nil
// when there is no such account for that user.
func (r *AccountRepository) GetAccount(ctx context.Context, accountID, userID string) (*models.SocialAccount, error) {
	var account models.SocialAccount
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", accountID, userID).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// ListUserIDs returns the distinct owners of linked accounts
func (r *AccountRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	var userIDs []string
	if err := r.db.WithContext(ctx).
		Model(&models.SocialAccount{}).
		Distinct("user_id").
		Order("user_id").
		Pluck("user_id", &userIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to list account owners: %w", err)
	}
	return userIDs, nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.SocialAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// CommentRepository provides comment persistence
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// InsertIfAbsent appends a comment for the account. There is no existence
// pre-check: the (social_account_id, platform_comment_id) unique index is
// the only dedup signal, so concurrent syncs of one account cannot race
// into duplicate rows.
func (r *CommentRepository) InsertIfAbsent(ctx context.Context, accountID string, c models.NormalizedComment) (models.InsertOutcome, error) {
	row := &models.Comment{
		SocialAccountID:   accountID,
		PlatformCommentID: c.PlatformCommentID,
		Content:           c.Content,
		AuthorName:        sql.NullString{String: c.AuthorName, Valid: c.AuthorName != ""},
		AuthorHandle:      nullString(c.AuthorHandle),
		URL:               nullString(c.URL),
		Metadata:          c.Metadata,
	}
	if c.PostedAt != nil {
		row.PostedAt = sql.NullTime{Time: c.PostedAt.UTC(), Valid: true}
	}

	err := r.db.WithContext(ctx).Create(row).Error
	switch {
	case err == nil:
		return models.Inserted, nil
	case IsUniqueViolation(err):
		return models.Duplicate, nil
	default:
		return models.InsertFailed, fmt.Errorf("failed to insert comment %s: %w", c.PlatformCommentID, err)
	}
}

// Stats returns the number of stored comments for the account and the most
// recent ingestion time
func (r *CommentRepository) Stats(ctx context.Context, accountID string) (*models.CommentStats, error) {
	stats := &models.CommentStats{}
	if err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("social_account_id = ?", accountID).
		Count(&stats.TotalComments).Error; err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	if stats.TotalComments == 0 {
		return stats, nil
	}

	var latest models.Comment
	if err := r.db.WithContext(ctx).
		Select("ingested_at").
		Where("social_account_id = ?", accountID).
		Order("ingested_at DESC").
		Take(&latest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, nil
		}
		return nil, fmt.Errorf("failed to get last ingestion time: %w", err)
	}
	stats.LastSyncAt = &latest.IngestedAt
	return stats, nil
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// either already translated by gorm or as a raw PostgreSQL error
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
