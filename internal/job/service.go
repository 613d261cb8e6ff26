package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/maauso/beatloop/internal/frames"
	"github.com/maauso/beatloop/internal/media"
	"github.com/maauso/beatloop/internal/storage"
	"github.com/maauso/beatloop/internal/timeline"
)

// Upload field names reported by MissingInputError.
const (
	FieldAnimation = "gif"
	FieldAudio     = "audio"
)

// DefaultMaxConcurrentRenders is the number of renders allowed to run at once.
const DefaultMaxConcurrentRenders = 2

var (
	// ErrMissingInput is matched by every MissingInputError via errors.Is.
	ErrMissingInput = errors.New("missing input")
	// ErrRenderBusy is returned when no render slot became free before ctx ended.
	ErrRenderBusy = errors.New("no render slot available")
)

// MissingInputError reports an upload that was absent or empty.
type MissingInputError struct {
	Field string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("no %s uploaded", e.Field)
}

// Is reports whether target is ErrMissingInput.
func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingInput
}

// Request contains the inputs of one render.
type Request struct {
	// Animation is the raw GIF upload.
	Animation []byte
	// Audio is the raw soundtrack upload. Its container is left to ffmpeg.
	Audio []byte
	// TimePerBeat is the beat length in seconds.
	TimePerBeat float64
	// AudioDuration is the soundtrack length in seconds.
	AudioDuration float64
	// PushToS3 uploads the final video to S3 instead of serving it.
	PushToS3 bool
}

// Validate checks the request without touching the filesystem.
func (r Request) Validate() error {
	if len(r.Animation) == 0 {
		return &MissingInputError{Field: FieldAnimation}
	}
	if len(r.Audio) == 0 {
		return &MissingInputError{Field: FieldAudio}
	}
	return timeline.Validate(r.TimePerBeat, r.AudioDuration)
}

// Result is a finished render. The caller owns the scratch directory holding
// OutputPath until Close is called.
type Result struct {
	JobID string
	// OutputPath is the final MP4 on local disk.
	OutputPath string
	// VideoURL is set when the video was pushed to S3.
	VideoURL   string
	FrameCount int
	BeatCount  int
	// Elapsed is the wall time spent rendering, excluding the slot wait.
	Elapsed time.Duration

	once    sync.Once
	release func() error
	err     error
}

// Close removes the render's scratch directory. It is safe to call more than once.
func (r *Result) Close() error {
	r.once.Do(func() {
		if r.release != nil {
			r.err = r.release()
		}
	})
	return r.err
}

// Service orchestrates a render: scratch setup, frame extraction, timeline,
// encoding, muxing and optional upload.
type Service struct {
	store     storage.Storage
	extractor frames.Extractor
	encoder   media.Encoder
	registry  *Registry
	slots     *semaphore.Weighted
	logger    *slog.Logger

	maxConcurrentRenders int
}

// Option configures a Service.
type Option func(*Service)

// WithMaxConcurrentRenders caps how many renders run at once. Values below 1 are ignored.
func WithMaxConcurrentRenders(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxConcurrentRenders = n
		}
	}
}

// WithRegistry shares an existing in-flight registry.
func WithRegistry(r *Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// NewService creates a render Service.
func NewService(store storage.Storage, extractor frames.Extractor, encoder media.Encoder, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:                store,
		extractor:            extractor,
		encoder:              encoder,
		registry:             NewRegistry(),
		logger:               logger,
		maxConcurrentRenders: DefaultMaxConcurrentRenders,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.slots = semaphore.NewWeighted(int64(s.maxConcurrentRenders))
	return s
}

// Registry returns the in-flight job registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// GetJob returns a snapshot of an in-flight render.
func (s *Service) GetJob(jobID string) (*RenderJob, error) {
	return s.registry.Get(jobID)
}

// ListJobs returns snapshots of all in-flight renders, oldest first.
func (s *Service) ListJobs() []*RenderJob {
	return s.registry.List()
}

// ActiveRenders returns the number of renders whose scratch directory still exists.
func (s *Service) ActiveRenders() int {
	return s.registry.Count()
}

// Render runs a render to completion. On error nothing is left on disk.
// On success the caller must Close the Result once the video was delivered.
func (s *Service) Render(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.PushToS3 && !s.store.S3Enabled() {
		return nil, storage.ErrS3NotConfigured
	}

	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderBusy, err)
	}
	defer s.slots.Release(1)

	job := New()
	job.TimePerBeat = req.TimePerBeat
	job.AudioDuration = req.AudioDuration
	job.PushToS3 = req.PushToS3

	logger := s.logger.With(slog.String("job_id", job.ID))
	logger.Info("render started",
		slog.Int("animation_bytes", len(req.Animation)),
		slog.Int("audio_bytes", len(req.Audio)),
		slog.Float64("time_per_beat", req.TimePerBeat),
		slog.Float64("audio_duration", req.AudioDuration),
		slog.Bool("push_to_s3", req.PushToS3),
	)

	s.registry.Add(job)

	dir, err := s.store.CreateScratch(ctx, job.ID)
	if err != nil {
		s.fail(ctx, job, logger, err)
		s.registry.Remove(job.ID)
		return nil, fmt.Errorf("create scratch: %w", err)
	}
	job.SetScratch(dir)

	release := func() error {
		defer s.registry.Remove(job.ID)
		if err := s.store.CleanupScratch(context.WithoutCancel(ctx), dir); err != nil {
			logger.Warn("failed to remove scratch directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			return err
		}
		return nil
	}

	handedOff := false
	defer func() {
		if !handedOff {
			_ = release()
		}
	}()

	start := time.Now()
	if err := s.run(ctx, job, req, logger); err != nil {
		s.fail(ctx, job, logger, err)
		return nil, err
	}

	snap := job.Clone()
	elapsed := time.Since(start)
	logger.Info("render completed",
		slog.Int("frames", snap.FrameCount),
		slog.Int("beats", snap.BeatCount),
		slog.Duration("elapsed", elapsed),
	)

	handedOff = true
	return &Result{
		JobID:      snap.ID,
		OutputPath: snap.OutputPath,
		VideoURL:   snap.VideoURL,
		FrameCount: snap.FrameCount,
		BeatCount:  snap.BeatCount,
		Elapsed:    elapsed,
		release:    release,
	}, nil
}

func (s *Service) run(ctx context.Context, job *RenderJob, req Request, logger *slog.Logger) error {
	if _, err := s.store.SaveTemp(ctx, job.ScratchDir, AnimationFile, bytes.NewReader(req.Animation)); err != nil {
		return fmt.Errorf("save animation: %w", err)
	}
	if _, err := s.store.SaveTemp(ctx, job.ScratchDir, AudioFile, bytes.NewReader(req.Audio)); err != nil {
		return fmt.Errorf("save audio: %w", err)
	}

	if err := job.TransitionTo(StageExtracting); err != nil {
		return err
	}
	set, err := s.extract(ctx, job)
	if err != nil {
		return err
	}
	logger.Debug("frames extracted", slog.Int("frames", len(set)))

	if err := job.TransitionTo(StageTimeline); err != nil {
		return err
	}
	tl, err := timeline.Build(set.Paths(), req.TimePerBeat, req.AudioDuration)
	if err != nil {
		return err
	}
	job.SetCounts(len(set), tl.BeatCount)
	if err := tl.Write(job.EditListPath); err != nil {
		return fmt.Errorf("write edit list: %w", err)
	}
	logger.Debug("timeline written",
		slog.Int("entries", len(tl.Entries)),
		slog.Int("beats", tl.BeatCount),
		slog.String("frame_duration", timeline.FormatDuration(tl.FrameDuration)),
	)

	if err := job.TransitionTo(StageAssembling); err != nil {
		return err
	}
	if err := s.encoder.Assemble(ctx, job.EditListPath, job.VideoPath); err != nil {
		return err
	}

	if err := job.TransitionTo(StageMuxing); err != nil {
		return err
	}
	if err := s.encoder.Mux(ctx, job.VideoPath, job.AudioPath, job.OutputPath); err != nil {
		return err
	}

	if req.PushToS3 {
		if err := job.TransitionTo(StageUploading); err != nil {
			return err
		}
		url, err := s.upload(ctx, job)
		if err != nil {
			return err
		}
		job.SetVideoURL(url)
		logger.Info("video uploaded", slog.String("video_url", url))
	}

	return job.Complete()
}

func (s *Service) extract(ctx context.Context, job *RenderJob) (frames.FrameSet, error) {
	src, err := s.store.LoadTemp(ctx, job.AnimationPath)
	if err != nil {
		return nil, fmt.Errorf("open animation: %w", err)
	}
	defer func() { _ = src.Close() }()

	return s.extractor.Extract(ctx, src, job.ScratchDir)
}

func (s *Service) upload(ctx context.Context, job *RenderJob) (string, error) {
	f, err := s.store.LoadTemp(ctx, job.OutputPath)
	if err != nil {
		return "", fmt.Errorf("open final video: %w", err)
	}
	defer func() { _ = f.Close() }()

	return s.store.UploadToS3(ctx, "renders/"+job.ID+".mp4", f)
}

// fail records err on the job. A render stopped by its context is CANCELLED,
// anything else is FAILED.
func (s *Service) fail(ctx context.Context, job *RenderJob, logger *slog.Logger, err error) {
	stage := job.GetStage()
	if ctx.Err() != nil {
		_ = job.Cancel()
		logger.Warn("render cancelled",
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)
		return
	}
	_ = job.Fail(err.Error())
	logger.Error("render failed",
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()),
	)
}
