package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/maauso/beatloop/internal/frames"
	"github.com/maauso/beatloop/internal/job"
	"github.com/maauso/beatloop/internal/media"
	"github.com/maauso/beatloop/internal/storage"
	"github.com/maauso/beatloop/internal/timeline"
)

// ErrDelivery is matched by every DeliveryError via errors.Is.
var ErrDelivery = errors.New("deliver video")

// errUploadTooLarge is returned when a single uploaded file exceeds the limit.
var errUploadTooLarge = errors.New("upload too large")

// DeliveryError reports a finished video that could not be streamed to the
// client. Headers are already sent at that point so it is only logged.
type DeliveryError struct {
	JobID string
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver video for %s: %v", e.JobID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDelivery.
func (e *DeliveryError) Is(target error) bool {
	return target == ErrDelivery
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeMissingInput    = "MISSING_INPUT"
	CodeInvalidTimeline = "INVALID_TIMELINE"
	CodeDecodeError     = "DECODE_ERROR"
	CodeUploadTooLarge  = "UPLOAD_TOO_LARGE"
	CodeInvalidForm     = "INVALID_FORM"
	CodeS3NotConfigured = "S3_NOT_CONFIGURED"
	CodeEncodeError     = "ENCODE_ERROR"
	CodeRenderBusy      = "RENDER_BUSY"
	CodeRenderCancelled = "RENDER_CANCELLED"
	CodeJobNotFound     = "JOB_NOT_FOUND"
	CodeInternal        = "INTERNAL_ERROR"
)

// renderErrorStatus maps a render error to an HTTP status, code and message.
// Encoder stderr stays in the logs.
func renderErrorStatus(err error) (int, string, string) {
	var encErr *media.EncodeError
	switch {
	case errors.Is(err, job.ErrMissingInput):
		return http.StatusBadRequest, CodeMissingInput, err.Error()
	case errors.Is(err, timeline.ErrInvalidTimeline):
		return http.StatusBadRequest, CodeInvalidTimeline, err.Error()
	case errors.Is(err, frames.ErrDecode):
		return http.StatusUnprocessableEntity, CodeDecodeError, err.Error()
	case errors.Is(err, storage.ErrS3NotConfigured):
		return http.StatusBadRequest, CodeS3NotConfigured, "pushToS3 requested but S3 is not configured"
	case errors.Is(err, job.ErrRenderBusy):
		return http.StatusServiceUnavailable, CodeRenderBusy, "all render slots are busy"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeRenderCancelled, "render cancelled"
	case errors.As(err, &encErr):
		return http.StatusInternalServerError, CodeEncodeError,
			fmt.Sprintf("encoding failed at stage %d (exit code %d)", encErr.Stage, encErr.ExitCode)
	default:
		return http.StatusInternalServerError, CodeInternal, "render failed"
	}
}
