package model

import "time"

// GenerateRequest is the body of POST /api/video/generate
type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required,min=1,max=2000"`
}

// GenerateResponse is returned once the generation service accepted the prompt
type GenerateResponse struct {
	TaskID string `json:"task_id"`
	Status Status `json:"status"`
}

// FinalVideo is the catalogue row written when a raw video lands in storage
type FinalVideo struct {
	VideoKey          string     `json:"video_key"`
	UserID            string     `json:"user_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	YouTubeVideoID    *string    `json:"youtube_video_id,omitempty"`
	YouTubeUploadedAt *time.Time `json:"youtube_uploaded_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Operation log types and outcomes
const (
	LogTypeVideoGenerate   = "VIDEO_GENERATE"
	LogTypeVideoGenerateV2 = "VIDEO_GENERATE_V2"
	LogTypeYouTubeUpload   = "YOUTUBE_UPLOAD"

	LogStatusSuccess = "SUCCESS"
	LogStatusFailed  = "FAILED"
)

// OperationLog records the outcome of one user-facing operation
type OperationLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	LogType   string    `json:"log_type"`
	Status    string    `json:"status"`
	VideoKey  string    `json:"video_key"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// VideoEntry is one logical task in a user's listing
type VideoEntry struct {
	TaskID       string   `json:"task_id"`
	Variants     []string `json:"variants"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
}

// VideoListResponse is returned by GET /api/video/list
type VideoListResponse struct {
	Videos []VideoEntry `json:"videos"`
}

// YouTubeUploadRequest is the body of POST /api/video/youtube/upload
type YouTubeUploadRequest struct {
	VideoKey    string `json:"video_key" validate:"required"`
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"max=5000"`
	Variant     string `json:"variant"`
}

// YouTubeUploadResponse is returned after a successful publish
type YouTubeUploadResponse struct {
	Status         string `json:"status"`
	YouTubeVideoID string `json:"youtube_video_id"`
}
