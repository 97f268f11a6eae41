package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/narrator/internal/storage"
)

// NarratorSource builds a narrator for a model. *Factory implements it.
type NarratorSource interface {
	Narrator(model string) (*Narrator, error)
	Request(input, output string) Request
}

// Worker processes a single narration job.
type Worker struct {
	narrators NarratorSource
	store     storage.Storage
	log       *slog.Logger
}

func NewWorker(narrators NarratorSource, store storage.Storage, log *slog.Logger) *Worker {
	return &Worker{
		narrators: narrators,
		store:     store,
		log:       log,
	}
}

// Process runs the narration for a job and publishes the result.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename, "model", job.Model)

	n, err := w.narrators.Narrator(job.Model)
	if err != nil {
		log.Error("narrator setup failed", "error", err)
		job.Fail(StateInit, err)
		return
	}

	req := w.narrators.Request(job.InputPath(), w.store.OutputPath(job.ID+".wav"))
	if job.Language != "" {
		req.Language = job.Language
	}
	if job.Speaker != "" {
		req.Speaker = job.Speaker
	}
	if job.LLMBudget > 0 {
		req.LLMBudget = job.LLMBudget
	}
	if job.TTSBudget > 0 {
		req.TTSBudget = job.TTSBudget
	}
	req.Observer = job

	res, err := n.Run(ctx, req)
	if err != nil {
		stage := StateInit
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		job.Fail(stage, err)
		return
	}

	job.SetStatus(StatusPublishing)
	url, err := w.store.Publish(ctx, "narrations/"+job.ID+".wav", res.Output)
	switch {
	case errors.Is(err, storage.ErrS3NotConfigured):
		url = ""
	case err != nil:
		log.Warn("publish failed, serving local file", "error", err)
		job.AddError("publish: " + err.Error())
		url = ""
	}

	if err := w.store.Remove(ctx, []string{job.InputPath()}); err != nil {
		log.Warn("upload cleanup failed", "error", err)
	}
	job.Finish(res, url)
	log.Info("narration job complete", "duration", res.AudioDuration, "audio_url", url)
}
