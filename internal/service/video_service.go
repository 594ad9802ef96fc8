package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/artifact"
	"github.com/justic/shortsgen/internal/client"
	"github.com/justic/shortsgen/internal/model"
	"github.com/justic/shortsgen/internal/repository"
)

const defaultPublishVariant = "v1"

// VideoService is the read side of the catalogue: listing, streaming and
// publishing a user's videos
type VideoService struct {
	storage   client.StorageClient
	scheme    *artifact.Scheme
	catalogue repository.Catalogue
	publisher client.VideoPublisher
	logger    zerolog.Logger
}

func NewVideoService(storage client.StorageClient, scheme *artifact.Scheme, catalogue repository.Catalogue, publisher client.VideoPublisher, logger zerolog.Logger) *VideoService {
	return &VideoService{
		storage:   storage,
		scheme:    scheme,
		catalogue: catalogue,
		publisher: publisher,
		logger:    logger.With().Str("component", "video").Logger(),
	}
}

// List groups the user's objects into one entry per task, newest id first
func (s *VideoService) List(ctx context.Context, owner string) (*model.VideoListResponse, error) {
	keys, err := s.storage.List(ctx, owner+"/")
	if err != nil {
		return nil, err
	}

	videos := make([]model.VideoEntry, 0)
	for _, e := range s.scheme.GroupTasks(keys) {
		if !e.HasOriginal && len(e.Variants) == 0 {
			continue
		}
		entry := model.VideoEntry{TaskID: e.TaskID, Variants: e.Variants}
		if e.HasThumbnail {
			entry.ThumbnailURL = "/api/video/thumbnail/" + e.TaskID
		}
		videos = append(videos, entry)
	}
	return &model.VideoListResponse{Videos: videos}, nil
}

// Stream opens a task video. An empty variant selects the raw original.
func (s *VideoService) Stream(ctx context.Context, owner, taskID, variant string) (io.ReadCloser, error) {
	if variant != "" && !s.scheme.IsReadableVariant(variant) {
		return nil, model.ErrUnknownVariant
	}
	return s.open(ctx, artifact.VideoKey(owner, taskID, variant))
}

// Thumbnail opens a task thumbnail
func (s *VideoService) Thumbnail(ctx context.Context, owner, taskID string) (io.ReadCloser, error) {
	return s.open(ctx, artifact.ThumbnailKey(owner, taskID))
}

func (s *VideoService) open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.storage.Download(ctx, key)
	if err != nil {
		if errors.Is(err, client.ErrObjectNotFound) {
			return nil, model.ErrVideoNotFound
		}
		return nil, err
	}
	return body, nil
}

// PublishYouTube uploads a variant (falling back to the original) to the
// user's YouTube channel
func (s *VideoService) PublishYouTube(ctx context.Context, owner string, req *model.YouTubeUploadRequest) (*model.YouTubeUploadResponse, error) {
	taskID := req.VideoKey
	variant := req.Variant
	if variant == "" {
		variant = defaultPublishVariant
	}
	log := s.logger.With().Str("task_id", taskID).Str("user_id", owner).Logger()

	body, err := s.Stream(ctx, owner, taskID, variant)
	if err != nil {
		log.Info().Err(err).Str("variant", variant).Msg("variant unavailable, publishing original")
		body, err = s.Stream(ctx, owner, taskID, "")
	}
	if err != nil {
		return nil, err
	}
	defer body.Close()

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Task: %s", taskID)
	}

	youtubeID, err := s.publisher.Publish(ctx, owner, body, client.VideoMeta{Title: req.Title, Description: description})
	if err != nil {
		s.opLog(ctx, log, owner, taskID, model.LogStatusFailed, err.Error())
		return nil, err
	}

	if youtubeID != "" {
		if err := s.catalogue.MarkYouTubeUploaded(ctx, taskID, youtubeID); err != nil {
			log.Error().Err(err).Msg("failed to mark video uploaded")
		}
	}
	s.opLog(ctx, log, owner, taskID, model.LogStatusSuccess, "YouTube upload "+youtubeID)
	log.Info().Str("youtube_video_id", youtubeID).Msg("video published")

	return &model.YouTubeUploadResponse{Status: "UPLOADED", YouTubeVideoID: youtubeID}, nil
}

func (s *VideoService) opLog(ctx context.Context, log zerolog.Logger, owner, taskID, status, message string) {
	if err := s.catalogue.InsertOperationLog(ctx, &model.OperationLog{
		UserID:   owner,
		LogType:  model.LogTypeYouTubeUpload,
		Status:   status,
		VideoKey: taskID,
		Message:  message,
	}); err != nil {
		log.Error().Err(err).Msg("failed to write operation log")
	}
}
