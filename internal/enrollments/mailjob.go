package enrollments

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/queue"
)

// JobEnqueuer pushes EnrollMail jobs to the out-of-process queue.
type JobEnqueuer interface {
	EnqueueEnrollMail(ctx context.Context, payload queue.EnrollMailPayload) (*queue.Job, error)
}

// MailProducer decouples request handling from the queue: Submit only writes to a buffered
// channel and Run pushes to the queue in the background.
type MailProducer struct {
	queue   JobEnqueuer
	jobs    chan queue.EnrollMailPayload
	timeout time.Duration
	logger  *zap.Logger
}

// NewMailProducer creates a producer with the given channel capacity and per-push timeout.
func NewMailProducer(q JobEnqueuer, buffer int, timeout time.Duration, logger *zap.Logger) *MailProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MailProducer{
		queue:   q,
		jobs:    make(chan queue.EnrollMailPayload, buffer),
		timeout: timeout,
		logger:  logger,
	}
}

// MailPayload builds the EnrollMail job payload from an enrollment view.
func MailPayload(view *models.EnrollmentView) queue.EnrollMailPayload {
	return queue.EnrollMailPayload{Enroll: queue.EnrollMailEnrollment{
		ID:     view.ID,
		User:   queue.EnrollMailUser{Name: view.User.Name, Email: view.User.Email},
		Meetup: queue.EnrollMailMeetup{Title: view.Meetup.Title},
	}}
}

// Submit never blocks. When the buffer is full the job is dropped and logged.
func (p *MailProducer) Submit(view *models.EnrollmentView) {
	payload := MailPayload(view)
	select {
	case p.jobs <- payload:
	default:
		mailJobsSubmitted.WithLabelValues("dropped").Inc()
		p.logger.Error("enroll mail buffer full, job dropped",
			zap.String("enrollment_id", view.ID.String()),
			zap.String("email", view.User.Email),
		)
	}
}

// Run pushes submitted jobs until ctx is done, then drains what is already buffered.
func (p *MailProducer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			p.logger.Info("enroll mail producer stopped")
			return
		case payload := <-p.jobs:
			p.push(ctx, payload)
		}
	}
}

func (p *MailProducer) drain() {
	for {
		select {
		case payload := <-p.jobs:
			p.push(context.Background(), payload)
		default:
			return
		}
	}
}

func (p *MailProducer) push(ctx context.Context, payload queue.EnrollMailPayload) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	job, err := p.queue.EnqueueEnrollMail(ctx, payload)
	if err != nil {
		mailJobsSubmitted.WithLabelValues("failed").Inc()
		p.logger.Error("enqueue enroll mail failed",
			zap.Error(err),
			zap.String("enrollment_id", payload.Enroll.ID.String()),
		)
		return
	}
	mailJobsSubmitted.WithLabelValues("enqueued").Inc()
	p.logger.Debug("enroll mail enqueued", zap.String("job_id", job.ID), zap.String("enrollment_id", payload.Enroll.ID.String()))
}
