package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/justic/shortsgen/internal/config"
)

// ErrNoYouTubeToken is returned when the user never linked a YouTube account.
var ErrNoYouTubeToken = errors.New("youtube account not linked")

// TokenStore persists per-user OAuth tokens
type TokenStore interface {
	GetYouTubeToken(ctx context.Context, userID string) (*oauth2.Token, error)
	SaveYouTubeToken(ctx context.Context, userID string, token *oauth2.Token) error
}

// VideoMeta describes a video being published
type VideoMeta struct {
	Title       string
	Description string
}

// VideoPublisher uploads a finished video to a hosting service on behalf of a user
type VideoPublisher interface {
	Publish(ctx context.Context, userID string, media io.Reader, meta VideoMeta) (string, error)
}

// YouTubeClient implements VideoPublisher with the YouTube Data API
type YouTubeClient struct {
	oauth      *oauth2.Config
	tokens     TokenStore
	categoryID string
	privacy    string
}

// NewYouTubeClient creates a new YouTube publisher
func NewYouTubeClient(cfg *config.YouTubeConfig, tokens TokenStore) *YouTubeClient {
	return &YouTubeClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{youtube.YoutubeUploadScope},
		},
		tokens:     tokens,
		categoryID: cfg.CategoryID,
		privacy:    cfg.Privacy,
	}
}

// IsConfigured returns true if OAuth client credentials are present
func (c *YouTubeClient) IsConfigured() bool {
	return c.oauth.ClientID != "" && c.oauth.ClientSecret != ""
}

// Publish uploads media and returns the YouTube video id. A refreshed access
// token is written back to the token store.
func (c *YouTubeClient) Publish(ctx context.Context, userID string, media io.Reader, meta VideoMeta) (string, error) {
	tok, err := c.tokens.GetYouTubeToken(ctx, userID)
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", ErrNoYouTubeToken
	}

	ts := c.oauth.TokenSource(ctx, tok)
	svc, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return "", fmt.Errorf("failed to create youtube service: %w", err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			CategoryId:  c.categoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: c.privacy,
		},
	}

	resp, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(media).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("youtube upload failed: %w", err)
	}

	if fresh, err := ts.Token(); err == nil && fresh.AccessToken != tok.AccessToken {
		_ = c.tokens.SaveYouTubeToken(ctx, userID, fresh)
	}

	return resp.Id, nil
}
