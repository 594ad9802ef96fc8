// Package repository persists the video catalogue, operation logs and linked
// YouTube accounts in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"golang.org/x/oauth2"

	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/repository/migrations"
)

// Catalogue is the relational store used by the callback handler and the
// video service.
type Catalogue interface {
	InsertFinalVideo(ctx context.Context, v *model.FinalVideo) error
	GetFinalVideo(ctx context.Context, videoKey string) (*model.FinalVideo, error)
	MarkYouTubeUploaded(ctx context.Context, videoKey, youtubeID string) error
	InsertOperationLog(ctx context.Context, l *model.OperationLog) error
}

// Repository implements Catalogue and the YouTube token store on pgx.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// MigrationFiles lists the embedded schema files in apply order.
func MigrationFiles() ([]string, error) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Migrate brings the schema up to the latest embedded version. Applied
// versions are tracked in goose's version table.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (r *Repository) InsertFinalVideo(ctx context.Context, v *model.FinalVideo) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO final_videos (video_key, user_id, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (video_key) DO UPDATE
		SET title = EXCLUDED.title, description = EXCLUDED.description
	`, v.VideoKey, v.UserID, v.Title, v.Description, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert final video %s: %w", v.VideoKey, err)
	}
	return nil
}

func (r *Repository) GetFinalVideo(ctx context.Context, videoKey string) (*model.FinalVideo, error) {
	var v model.FinalVideo
	err := r.pool.QueryRow(ctx, `
		SELECT video_key, user_id, title, description, youtube_video_id, youtube_uploaded_at, created_at
		FROM final_videos
		WHERE video_key = $1
	`, videoKey).Scan(&v.VideoKey, &v.UserID, &v.Title, &v.Description, &v.YouTubeVideoID, &v.YouTubeUploadedAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrVideoNotFound
		}
		return nil, fmt.Errorf("get final video %s: %w", videoKey, err)
	}
	return &v, nil
}

func (r *Repository) MarkYouTubeUploaded(ctx context.Context, videoKey, youtubeID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE final_videos
		SET youtube_video_id = $1, youtube_uploaded_at = $2
		WHERE video_key = $3
	`, youtubeID, time.Now().UTC(), videoKey)
	if err != nil {
		return fmt.Errorf("mark youtube uploaded %s: %w", videoKey, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrVideoNotFound
	}
	return nil
}

func (r *Repository) InsertOperationLog(ctx context.Context, l *model.OperationLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO operation_logs (id, user_id, log_type, status, video_key, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, l.ID, l.UserID, l.LogType, l.Status, l.VideoKey, l.Message, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert operation log: %w", err)
	}
	return nil
}

// GetYouTubeToken returns nil without error when the user has no token.
func (r *Repository) GetYouTubeToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	var tok oauth2.Token
	var expiry *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT access_token, refresh_token, token_type, expiry
		FROM youtube_tokens
		WHERE user_id = $1
	`, userID).Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get youtube token: %w", err)
	}
	if expiry != nil {
		tok.Expiry = *expiry
	}
	return &tok, nil
}

func (r *Repository) SaveYouTubeToken(ctx context.Context, userID string, tok *oauth2.Token) error {
	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		e := tok.Expiry.UTC()
		expiry = &e
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO youtube_tokens (user_id, access_token, refresh_token, token_type, expiry, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), youtube_tokens.refresh_token),
		    token_type = EXCLUDED.token_type,
		    expiry = EXCLUDED.expiry,
		    updated_at = NOW()
	`, userID, tok.AccessToken, tok.RefreshToken, tok.TokenType, expiry)
	if err != nil {
		return fmt.Errorf("save youtube token: %w", err)
	}
	return nil
}
