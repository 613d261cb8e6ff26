// Package server provides the HTTP server for the beatloop render API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// RenderForm holds the non-file fields of a render upload.
type RenderForm struct {
	// TimePerBeat is the beat length in seconds.
	TimePerBeat string `validate:"required,numeric"`
	// AudioDuration is the soundtrack length in seconds.
	AudioDuration string `validate:"required,numeric"`
	// PushToS3 requests an S3 upload instead of a file download.
	PushToS3 string `validate:"omitempty,boolean"`
}

// RenderResponse is returned instead of the video when it was pushed to S3.
type RenderResponse struct {
	// JobID identifies the render in the logs.
	JobID string `json:"job_id"`
	// VideoURL is the S3 URL of the output video.
	VideoURL string `json:"video_url"`
}

// JobResponse describes an in-flight render.
type JobResponse struct {
	ID         string    `json:"id"`
	Stage      string    `json:"stage"`
	FrameCount int       `json:"frame_count,omitempty"`
	BeatCount  int       `json:"beat_count,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// JobListResponse lists in-flight renders.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
	// ActiveRenders is the number of renders currently holding scratch space.
	ActiveRenders int `json:"active_renders"`
}
