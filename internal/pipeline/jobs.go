package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the state of a narration job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusOCR        JobStatus = JobStatus(StateOCR)
	StatusCorrection JobStatus = JobStatus(StateCorrection)
	StatusSynthesis  JobStatus = JobStatus(StateSynthesis)
	StatusAssembled  JobStatus = JobStatus(StateAssembled)
	StatusPublishing JobStatus = "publishing"
	StatusSucceeded  JobStatus = JobStatus(StateSucceeded)
	StatusFailed     JobStatus = JobStatus(StateFailed)
)

// Done reports whether s is terminal.
func (s JobStatus) Done() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job tracks a single narration submitted to the service.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`
	Language string `json:"language"`
	Speaker  string `json:"speaker"`
	Model    string `json:"model"`

	LLMBudget int `json:"max_characters_llm"`
	TTSBudget int `json:"max_characters_tts"`

	Status      JobStatus `json:"status"`
	FailedStage State     `json:"failed_stage,omitempty"`
	Progress    Progress  `json:"progress"`

	AudioPath string `json:"-"`
	AudioURL  string `json:"audio_url,omitempty"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	inputPath string
	errors    []string
	err       error
}

// Progress counts chunks through both segmented stages.
type Progress struct {
	CorrectionTotal int      `json:"correction_total"`
	CorrectionDone  int      `json:"correction_done"`
	SynthesisTotal  int      `json:"synthesis_total"`
	SynthesisDone   int      `json:"synthesis_done"`
	Forced          int      `json:"forced"`
	Dropped         int      `json:"dropped"`
	AudioSeconds    float64  `json:"audio_seconds"`
	Errors          []string `json:"errors"`
}

// NewJob creates a queued job for the uploaded file at inputPath.
func NewJob(id, filename, inputPath string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Filename:  filename,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		inputPath: inputPath,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs not updated within the TTL and returns them
// so their files can be deleted.
func (s *JobStore) Cleanup() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var expired []*Job
	for id, job := range s.jobs {
		job.mu.Lock()
		stale := job.Status.Done() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if stale {
			delete(s.jobs, id)
			expired = append(expired, job)
		}
	}
	return expired
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed in stage.
func (j *Job) Fail(stage State, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.FailedStage = stage
	if err != nil {
		j.err = err
		j.errors = append(j.errors, err.Error())
		j.Progress.Errors = j.errors
	}
	j.UpdatedAt = time.Now()
}

// Finish records the outcome of a successful run.
func (j *Job) Finish(res *Result, audioURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusSucceeded
	j.AudioPath = res.Output
	j.AudioURL = audioURL
	j.Progress.AudioSeconds = res.AudioDuration.Seconds()
	j.UpdatedAt = time.Now()
}

// InputPath returns the stored upload.
func (j *Job) InputPath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inputPath
}

// Audio returns the local WAV path and the published URL, if any.
func (j *Job) Audio() (path, url string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.AudioPath, j.AudioURL
}

// Err returns the error the job failed with, or nil.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Files returns the local files owned by the job.
func (j *Job) Files() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return []string{j.inputPath, j.AudioPath}
}

// StateChanged implements Observer. Failure is recorded by Fail, which
// also knows the stage.
func (j *Job) StateChanged(state State) {
	switch state {
	case StateInit, StateFailed, StateSucceeded:
		return
	}
	j.SetStatus(JobStatus(state))
}

// ChunksPlanned implements Observer.
func (j *Job) ChunksPlanned(state State, total, forced int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch state {
	case StateCorrection:
		j.Progress.CorrectionTotal = total
	case StateSynthesis:
		j.Progress.SynthesisTotal = total
	}
	j.Progress.Forced += forced
	j.UpdatedAt = time.Now()
}

// ChunkDone implements Observer.
func (j *Job) ChunkDone(state State, _ int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch state {
	case StateCorrection:
		j.Progress.CorrectionDone++
	case StateSynthesis:
		j.Progress.SynthesisDone++
	}
	j.UpdatedAt = time.Now()
}

// ChunkDropped implements Observer.
func (j *Job) ChunkDropped(int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Dropped++
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Filename    string    `json:"filename"`
	Language    string    `json:"language"`
	Speaker     string    `json:"speaker"`
	Model       string    `json:"model"`
	Status      JobStatus `json:"status"`
	FailedStage State     `json:"failed_stage,omitempty"`
	Progress    Progress  `json:"progress"`
	AudioURL    string    `json:"audio_url,omitempty"`
	HasAudio    bool      `json:"has_audio"`
	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	progress := j.Progress
	progress.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Language:    j.Language,
		Speaker:     j.Speaker,
		Model:       j.Model,
		Status:      j.Status,
		FailedStage: j.FailedStage,
		Progress:    progress,
		AudioURL:    j.AudioURL,
		HasAudio:    j.Status == StatusSucceeded && j.AudioPath != "",
		ContentHash: j.ContentHash,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
