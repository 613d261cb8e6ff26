// Package job provides the RenderJob aggregate and the Service that turns an
// uploaded animation and soundtrack into a beat-synced video.
// It includes the RenderJob entity with its stage state machine, the
// in-flight Registry, and the render orchestration itself.
package job

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/maauso/beatloop/internal/job/id"
)

// Artifact file names inside a job's scratch directory.
const (
	AnimationFile = "input.gif"
	AudioFile     = "audio.mp3"
	EditListFile  = "filelist.txt"
	VideoFile     = "video.mp4"
	OutputFile    = "final.mp4"
)

// Stage represents the current step of a RenderJob.
type Stage string

const (
	// StagePending indicates the job has been created but no work started.
	StagePending Stage = "PENDING"
	// StageExtracting indicates frames are being decoded from the animation.
	StageExtracting Stage = "EXTRACTING"
	// StageTimeline indicates the edit list is being built and written.
	StageTimeline Stage = "BUILDING_TIMELINE"
	// StageAssembling indicates ffmpeg is encoding the silent video.
	StageAssembling Stage = "ASSEMBLING"
	// StageMuxing indicates ffmpeg is combining video and audio.
	StageMuxing Stage = "MUXING"
	// StageUploading indicates the final video is being pushed to S3.
	StageUploading Stage = "UPLOADING"
	// StageCompleted indicates the final video is ready.
	StageCompleted Stage = "COMPLETED"
	// StageFailed indicates the render stopped with an error.
	StageFailed Stage = "FAILED"
	// StageCancelled indicates the caller went away before the render finished.
	StageCancelled Stage = "CANCELLED"
)

// ErrInvalidTransition is returned when an invalid stage transition is attempted.
var ErrInvalidTransition = errors.New("invalid stage transition")

// validTransitions defines which stage transitions are allowed.
var validTransitions = map[Stage][]Stage{
	StagePending:    {StageExtracting, StageFailed, StageCancelled},
	StageExtracting: {StageTimeline, StageFailed, StageCancelled},
	StageTimeline:   {StageAssembling, StageFailed, StageCancelled},
	StageAssembling: {StageMuxing, StageFailed, StageCancelled},
	StageMuxing:     {StageUploading, StageCompleted, StageFailed, StageCancelled},
	StageUploading:  {StageCompleted, StageFailed, StageCancelled},
	StageCompleted:  {},
	StageFailed:     {},
	StageCancelled:  {},
}

// canTransition checks if a transition from one stage to another is valid.
func canTransition(from, to Stage) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RenderJob tracks one render from upload to finished video.
type RenderJob struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job. It also names the scratch directory.
	ID string
	// Stage is the current step.
	Stage Stage
	// Error contains the error message if the job failed.
	Error string

	// TimePerBeat is the requested beat length in seconds.
	TimePerBeat float64
	// AudioDuration is the declared soundtrack length in seconds.
	AudioDuration float64
	// PushToS3 indicates whether the result is uploaded to S3.
	PushToS3 bool

	// ScratchDir is the job's private working directory.
	ScratchDir    string
	AnimationPath string
	AudioPath     string
	EditListPath  string
	VideoPath     string
	OutputPath    string

	// FrameCount is the number of frames decoded from the animation.
	FrameCount int
	// BeatCount is the number of beats covering the soundtrack.
	BeatCount int
	// VideoURL is the S3 URL if PushToS3 was true.
	VideoURL string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// New creates a RenderJob with a generated ID in the PENDING stage.
func New() *RenderJob {
	return NewWithID(id.Generate())
}

// NewWithID creates a RenderJob with the given ID in the PENDING stage.
func NewWithID(jobID string) *RenderJob {
	now := time.Now()
	return &RenderJob{
		ID:        jobID,
		Stage:     StagePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetScratch records the scratch directory and derives every artifact path from it.
func (j *RenderJob) SetScratch(dir string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ScratchDir = dir
	j.AnimationPath = filepath.Join(dir, AnimationFile)
	j.AudioPath = filepath.Join(dir, AudioFile)
	j.EditListPath = filepath.Join(dir, EditListFile)
	j.VideoPath = filepath.Join(dir, VideoFile)
	j.OutputPath = filepath.Join(dir, OutputFile)
	j.UpdatedAt = time.Now()
}

// TransitionTo attempts to move the job to the specified stage.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *RenderJob) TransitionTo(stage Stage) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Stage, stage) {
		return ErrInvalidTransition
	}

	j.Stage = stage
	j.UpdatedAt = time.Now()
	switch stage {
	case StageCompleted, StageFailed, StageCancelled:
		j.CompletedAt = j.UpdatedAt
	}
	return nil
}

// Complete transitions the job to COMPLETED.
func (j *RenderJob) Complete() error {
	return j.TransitionTo(StageCompleted)
}

// Fail transitions the job to FAILED with an error message.
func (j *RenderJob) Fail(errMsg string) error {
	j.mu.Lock()
	j.Error = errMsg
	j.mu.Unlock()
	return j.TransitionTo(StageFailed)
}

// Cancel transitions the job to CANCELLED.
func (j *RenderJob) Cancel() error {
	return j.TransitionTo(StageCancelled)
}

// SetCounts records the decoded frame count and the beat count.
func (j *RenderJob) SetCounts(frames, beats int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FrameCount = frames
	j.BeatCount = beats
	j.UpdatedAt = time.Now()
}

// SetVideoURL records where the final video was uploaded.
func (j *RenderJob) SetVideoURL(url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.VideoURL = url
	j.UpdatedAt = time.Now()
}

// GetStage returns the current stage (thread-safe).
func (j *RenderJob) GetStage() Stage {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Stage
}

// IsTerminal returns true if the job is in a terminal stage.
func (j *RenderJob) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Stage == StageCompleted ||
		j.Stage == StageFailed ||
		j.Stage == StageCancelled
}

// Clone creates a copy of the job for safe reads.
func (j *RenderJob) Clone() *RenderJob {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &RenderJob{
		ID:            j.ID,
		Stage:         j.Stage,
		Error:         j.Error,
		TimePerBeat:   j.TimePerBeat,
		AudioDuration: j.AudioDuration,
		PushToS3:      j.PushToS3,
		ScratchDir:    j.ScratchDir,
		AnimationPath: j.AnimationPath,
		AudioPath:     j.AudioPath,
		EditListPath:  j.EditListPath,
		VideoPath:     j.VideoPath,
		OutputPath:    j.OutputPath,
		FrameCount:    j.FrameCount,
		BeatCount:     j.BeatCount,
		VideoURL:      j.VideoURL,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		CompletedAt:   j.CompletedAt,
	}
}
