package transcode

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/debargha2001/ytdlx/pkg/logging"
	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// EventKind tags a lifecycle event.
type EventKind string

const (
	EventWarning  EventKind = "warning"
	EventStart    EventKind = "start"
	EventProgress EventKind = "progress"
	EventEnd      EventKind = "end"
	EventError    EventKind = "error"
	EventMetadata EventKind = "metadata"
	EventStream   EventKind = "stream"
	// EventData ends lookup operations such as searches.
	EventData EventKind = "data"
)

// Terminal reports whether k ends a job.
func (k EventKind) Terminal() bool {
	switch k {
	case EventEnd, EventError, EventMetadata, EventStream, EventData:
		return true
	}
	return false
}

// Event is one lifecycle notification. Which fields are set depends on Kind.
type Event struct {
	Kind     EventKind       `json:"event"`
	JobID    string          `json:"jobId"`
	Command  string          `json:"command,omitempty"`
	Progress *Progress       `json:"progress,omitempty"`
	Output   string          `json:"output,omitempty"`
	Warning  string          `json:"warning,omitempty"`
	Error    *yterr.Error    `json:"error,omitempty"`
	Metadata *MetadataBundle `json:"metadata,omitempty"`
	Stream   *StreamHandle   `json:"stream,omitempty"`
	Data     any             `json:"data,omitempty"`
}

// eventBuffer bounds the event channel. Non-terminal events never take the last
// slot, so the terminal event is always delivered without blocking.
const eventBuffer = 128

// Job is one running operation. Events arrive in order: warnings and start, then
// progress, then exactly one terminal event, after which the channel is closed.
type Job struct {
	ID string

	mu         sync.Mutex
	events     chan Event
	terminated bool
	done       chan struct{}
	err        error
	cancel     context.CancelFunc
	logger     hclog.Logger
}

// Start runs fn in its own goroutine. A non-nil error from fn becomes the error event.
func Start(ctx context.Context, logger hclog.Logger, fn func(ctx context.Context, j *Job) error) *Job {
	ctx, cancel := context.WithCancel(ctx)
	j := &Job{
		ID:     uuid.NewString(),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	j.logger = logging.OrNull(logger).With("job", j.ID)

	go func() {
		defer cancel()
		err := fn(ctx, j)
		j.finish(err)
	}()
	return j
}

// Events returns the ordered event stream.
func (j *Job) Events() <-chan Event { return j.events }

// Wait blocks until the job is finished and returns its failure, if any.
func (j *Job) Wait() error {
	<-j.done
	return j.err
}

// Done is closed when the job has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel stops the job. A running ffmpeg process is killed.
func (j *Job) Cancel() { j.cancel() }

// Logger returns the job-scoped logger.
func (j *Job) Logger() hclog.Logger { return j.logger }

// Emit delivers e. Non-terminal events are dropped when the buffer is nearly
// full; after the terminal event everything is dropped.
func (j *Job) Emit(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.terminated {
		return
	}
	e.JobID = j.ID
	if e.Kind.Terminal() {
		j.terminated = true
		j.events <- e
		return
	}
	if len(j.events) >= cap(j.events)-1 {
		j.logger.Trace("dropping event, consumer is behind", "event", e.Kind)
		return
	}
	j.events <- e
}

// Warn emits a non-fatal warning event.
func (j *Job) Warn(msg string) {
	j.logger.Warn(msg)
	j.Emit(Event{Kind: EventWarning, Warning: msg})
}

func (j *Job) finish(err error) {
	if err != nil {
		typed := asTyped(err)
		j.err = typed
		j.Emit(Event{Kind: EventError, Error: typed})
		j.logger.Error("job failed", "kind", typed.Kind, "error", typed.Error())
	} else {
		j.mu.Lock()
		missing := !j.terminated
		j.mu.Unlock()
		if missing {
			j.Emit(Event{Kind: EventEnd})
		}
	}

	j.mu.Lock()
	j.terminated = true
	close(j.events)
	j.mu.Unlock()
	close(j.done)

	j.logger.Info("thank you for using yt-dlx, consider starring the project if it helped")
}

// asTyped converts any failure into a *yterr.Error for the error event.
func asTyped(err error) *yterr.Error {
	var typed *yterr.Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.Canceled) {
		return yterr.Wrap(yterr.KindTranscodeError, err, "job cancelled")
	}
	return yterr.Wrap(yterr.KindTranscodeError, err, "job failed")
}
