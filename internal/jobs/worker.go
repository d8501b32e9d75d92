package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor drains whatever work is currently queued.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed polling interval. One pass runs
// immediately on start so queued work does not wait out the first tick.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the polling loop until the context is cancelled or Stop is
// called. It blocks; run it in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("worker started, polling every %v", w.pollInterval)

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("worker stopped: stop requested")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("job processing pass failed: %v", err)
	}
}

// Stop signals the loop to exit and waits for the in-flight pass to finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
