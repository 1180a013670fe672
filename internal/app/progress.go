package app

import (
	"sync"
	"time"

	"mcqlab/internal/domain"
)

// ProgressHub fans saga progress out to websocket subscribers. Each running
// submission has a job entry; subscribers get the latest snapshot on attach
// and every update after that.
type ProgressHub struct {
	mu   sync.RWMutex
	now  func() time.Time
	jobs map[string]*progressJob
}

type progressJob struct {
	last        domain.Progress
	subscribers map[chan domain.Progress]struct{}
	closed      bool
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		now:  time.Now,
		jobs: make(map[string]*progressJob),
	}
}

// Open registers a submission before its saga starts so subscribers can
// attach immediately.
func (h *ProgressHub) Open(submissionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.jobs[submissionID]; ok {
		return
	}
	h.jobs[submissionID] = &progressJob{
		last: domain.Progress{
			SubmissionID: submissionID,
			Step:         domain.StepExtract,
			Status:       domain.StepPending,
			UpdatedAt:    h.now(),
		},
		subscribers: make(map[chan domain.Progress]struct{}),
	}
}

// Publish pushes one update to every subscriber of the submission. Slow
// subscribers have their stale update dropped rather than blocking the saga.
func (h *ProgressHub) Publish(p domain.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	job, ok := h.jobs[p.SubmissionID]
	if !ok || job.closed {
		return
	}
	p.UpdatedAt = h.now()
	job.last = p
	for ch := range job.subscribers {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
	}
}

// Subscribe returns a channel that receives progress updates for a
// submission. The caller must invoke the returned cancel function to avoid
// leaks.
func (h *ProgressHub) Subscribe(submissionID string) (<-chan domain.Progress, func(), error) {
	h.mu.Lock()
	job, ok := h.jobs[submissionID]
	if !ok {
		h.mu.Unlock()
		return nil, nil, domain.ErrSubmissionNotFound
	}
	ch := make(chan domain.Progress, 8)
	job.subscribers[ch] = struct{}{}
	// Send the snapshot before releasing the lock. A Publish racing in after
	// the unlock would otherwise land ahead of it and arrive out of order.
	ch <- job.last
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if job, ok := h.jobs[submissionID]; ok {
			if _, present := job.subscribers[ch]; present {
				delete(job.subscribers, ch)
				close(ch)
			}
		}
	}
	return ch, cancel, nil
}

// Close publishes the final update, closes all subscriber channels and drops
// the job.
func (h *ProgressHub) Close(submissionID string, final domain.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	job, ok := h.jobs[submissionID]
	if !ok {
		return
	}
	final.UpdatedAt = h.now()
	job.last = final
	job.closed = true
	for ch := range job.subscribers {
		select {
		case ch <- final:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- final
		}
		close(ch)
	}
	delete(h.jobs, submissionID)
}
