package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/beatloop/internal/job"
)

const (
	// DefaultMaxUploadBytes caps each uploaded file.
	DefaultMaxUploadBytes = 50 << 20
	// DefaultOutputFilename is the download name of the rendered video.
	DefaultOutputFilename = "output.mp4"

	// multipartMemory is how much of a form is kept in memory before spilling to disk.
	multipartMemory = 32 << 20
	// formOverhead allows for multipart boundaries and the text fields.
	formOverhead = 1 << 20
)

// Renderer runs renders and reports on the ones in flight.
type Renderer interface {
	Render(ctx context.Context, req job.Request) (*job.Result, error)
	GetJob(jobID string) (*job.RenderJob, error)
	ListJobs() []*job.RenderJob
	ActiveRenders() int
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	renderer       Renderer
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
	outputFilename string
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes sets the per-file upload limit. Values below 1 are ignored.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithOutputFilename sets the attachment name of the delivered video.
func WithOutputFilename(name string) HandlerOption {
	return func(h *Handlers) {
		if name != "" {
			h.outputFilename = name
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(renderer Renderer, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		renderer:       renderer,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
		outputFilename: DefaultOutputFilename,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		ActiveRenders: h.renderer.ActiveRenders(),
	})
}

// Render handles POST / and POST /render requests. The multipart form carries
// the gif and audio files plus timePerBeat, audioDuration and pushToS3.
// The response is the MP4 itself, or JSON with the S3 URL when pushed.
func (h *Handlers) Render(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %s", humanize.IBytes(uint64(tooLarge.Limit))), CodeUploadTooLarge)
			return
		}
		h.logger.Warn("failed to parse multipart form",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "expected a multipart/form-data body", CodeInvalidForm)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	animation, err := h.readUpload(r, job.FieldAnimation)
	if err != nil {
		h.writeUploadError(w, job.FieldAnimation, err)
		return
	}
	audio, err := h.readUpload(r, job.FieldAudio)
	if err != nil {
		h.writeUploadError(w, job.FieldAudio, err)
		return
	}
	// A missing payload is reported before any problem with the form fields.
	if len(animation) == 0 {
		h.writeRenderError(w, r, &job.MissingInputError{Field: job.FieldAnimation})
		return
	}
	if len(audio) == 0 {
		h.writeRenderError(w, r, &job.MissingInputError{Field: job.FieldAudio})
		return
	}

	form := RenderForm{
		TimePerBeat:   r.FormValue("timePerBeat"),
		AudioDuration: r.FormValue("audioDuration"),
		PushToS3:      r.FormValue("pushToS3"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), CodeInvalidForm)
		return
	}

	// Validated as numeric and boolean above.
	timePerBeat, _ := strconv.ParseFloat(form.TimePerBeat, 64)
	audioDuration, _ := strconv.ParseFloat(form.AudioDuration, 64)
	pushToS3 := false
	if form.PushToS3 != "" {
		pushToS3, _ = strconv.ParseBool(form.PushToS3)
	}

	res, err := h.renderer.Render(r.Context(), job.Request{
		Animation:     animation,
		Audio:         audio,
		TimePerBeat:   timePerBeat,
		AudioDuration: audioDuration,
		PushToS3:      pushToS3,
	})
	if err != nil {
		h.writeRenderError(w, r, err)
		return
	}
	defer func() { _ = res.Close() }()

	if res.VideoURL != "" {
		writeJSON(w, http.StatusOK, RenderResponse{
			JobID:    res.JobID,
			VideoURL: res.VideoURL,
		})
		return
	}

	h.deliver(w, res)
}

// GetJob handles GET /renders/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.renderer.GetJob(jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", CodeJobNotFound)
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", CodeInternal)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(found))
}

// ListJobs handles GET /renders requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.renderer.ListJobs()
	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload returns the contents of the named file field. A missing field
// yields nil.
func (h *Handlers) readUpload(r *http.Request, field string) ([]byte, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if hdr.Size > h.maxUploadBytes {
		return nil, fmt.Errorf("%w: %s is %s, limit %s", errUploadTooLarge, field,
			humanize.IBytes(uint64(hdr.Size)), humanize.IBytes(uint64(h.maxUploadBytes)))
	}

	h.logger.Debug("upload received",
		slog.String("field", field),
		slog.String("filename", hdr.Filename),
		slog.String("size", humanize.IBytes(uint64(hdr.Size))),
	)
	return readAllLimited(f, h.maxUploadBytes)
}

func readAllLimited(f multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}

// writeRenderError logs err at a level matching its status and writes the
// mapped error response.
func (h *Handlers) writeRenderError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := renderErrorStatus(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "render request failed",
		slog.Int("status", status),
		slog.String("code", code),
		slog.String("error", err.Error()),
	)
	writeError(w, status, msg, code)
}

func (h *Handlers) writeUploadError(w http.ResponseWriter, field string, err error) {
	if errors.Is(err, errUploadTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error(), CodeUploadTooLarge)
		return
	}
	h.logger.Warn("failed to read upload",
		slog.String("field", field),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusBadRequest, fmt.Sprintf("could not read %s upload", field), CodeInvalidForm)
}

// deliver streams the final video as an attachment.
func (h *Handlers) deliver(w http.ResponseWriter, res *job.Result) {
	f, err := os.Open(res.OutputPath)
	if err != nil {
		h.logger.Error("failed to open rendered video",
			slog.String("job_id", res.JobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "render failed", CodeInternal)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.outputFilename))
	w.Header().Set(headerJobID, res.JobID)
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, f)
	if err != nil {
		derr := &DeliveryError{JobID: res.JobID, Err: err}
		h.logger.Warn("video delivery interrupted",
			slog.String("job_id", res.JobID),
			slog.Int64("bytes_sent", n),
			slog.String("error", derr.Error()),
		)
		return
	}
	h.logger.Info("video delivered",
		slog.String("job_id", res.JobID),
		slog.String("size", humanize.IBytes(uint64(n))),
		slog.Duration("render_time", res.Elapsed),
	)
}

func toJobResponse(j *job.RenderJob) JobResponse {
	return JobResponse{
		ID:         j.ID,
		Stage:      string(j.Stage),
		FrameCount: j.FrameCount,
		BeatCount:  j.BeatCount,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
