package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/mail"
	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/queue"
)

// ErrInvalidPayload marks a job that can never succeed; it is not retried.
var ErrInvalidPayload = errors.New("invalid payload")

var jobsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "worker_jobs_processed_total",
		Help: "Jobs processed by the worker by type and result (sent, skipped, retried, dropped)",
	},
	[]string{"type", "result"},
)

// JobSource is the queue the worker consumes.
type JobSource interface {
	Dequeue(ctx context.Context, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
	DeadLetter(ctx context.Context, job *queue.Job) error
}

// LogStore records delivery per job so redelivered jobs are not sent twice.
type LogStore interface {
	GetByJobID(ctx context.Context, jobID string) (*models.EmailLog, error)
	Upsert(ctx context.Context, el *models.EmailLog) error
}

// Renderer renders a named mail template.
type Renderer interface {
	Render(name string, data any) (subject, htmlBody, textBody string, err error)
}

// EnrollMailProcessor sends enrollment confirmation e-mails from EnrollMail jobs.
type EnrollMailProcessor struct {
	queue    JobSource
	logs     LogStore
	mailer   mail.Mailer
	renderer Renderer
	backoff  time.Duration
	logger   *zap.Logger
}

// NewEnrollMailProcessor creates the processor.
func NewEnrollMailProcessor(q JobSource, logs LogStore, mailer mail.Mailer, renderer Renderer, logger *zap.Logger) *EnrollMailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollMailProcessor{
		queue:    q,
		logs:     logs,
		mailer:   mailer,
		renderer: renderer,
		backoff:  queue.RetryBackoff,
		logger:   logger,
	}
}

// Process executes one EnrollMail job. It reports whether the mail was skipped as already sent.
func (p *EnrollMailProcessor) Process(ctx context.Context, job *queue.Job) (skipped bool, err error) {
	if job.Type != queue.JobTypeEnrollMail {
		return false, fmt.Errorf("%w: unknown job type %s", ErrInvalidPayload, job.Type)
	}
	var payload queue.EnrollMailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	enroll := payload.Enroll
	if enroll.User.Email == "" || enroll.Meetup.Title == "" {
		return false, fmt.Errorf("%w: missing recipient or meetup title", ErrInvalidPayload)
	}

	prev, err := p.logs.GetByJobID(ctx, job.ID)
	if err != nil {
		return false, fmt.Errorf("load email log: %w", err)
	}
	if prev != nil && prev.Status == models.EmailLogStatusSent {
		p.logger.Info("enroll mail already sent", zap.String("job_id", job.ID))
		return true, nil
	}

	subject, html, text, err := p.renderer.Render(mail.TemplateEnroll, mail.EnrollData{
		Name:  enroll.User.Name,
		Title: enroll.Meetup.Title,
	})
	if err != nil {
		return false, fmt.Errorf("%w: render: %v", ErrInvalidPayload, err)
	}

	el := &models.EmailLog{
		JobID:          job.ID,
		EmailType:      models.EmailTypeEnrollConfirmation,
		RecipientEmail: enroll.User.Email,
		Subject:        subject,
	}
	if enroll.ID != uuid.Nil {
		id := enroll.ID
		el.EnrollmentID = &id
	}

	to := mail.Address(enroll.User.Name, enroll.User.Email)
	if sendErr := p.mailer.Send(ctx, to, subject, html, text); sendErr != nil {
		el.Status = models.EmailLogStatusFailed
		el.ErrorMessage = sendErr.Error()
		if err := p.logs.Upsert(ctx, el); err != nil {
			p.logger.Warn("record failed email log", zap.Error(err), zap.String("job_id", job.ID))
		}
		return false, fmt.Errorf("send: %w", sendErr)
	}

	now := time.Now().UTC()
	el.Status = models.EmailLogStatusSent
	el.SentAt = &now
	if err := p.logs.Upsert(ctx, el); err != nil {
		// The mail went out; a retry would send it twice.
		p.logger.Error("record sent email log", zap.Error(err), zap.String("job_id", job.ID))
	}
	p.logger.Info("enroll mail sent", zap.String("job_id", job.ID), zap.String("to", enroll.User.Email))
	return false, nil
}

// Handle processes a job and routes failures: invalid jobs go to the DLQ, others are retried.
func (p *EnrollMailProcessor) Handle(ctx context.Context, job *queue.Job) {
	skipped, err := p.Process(ctx, job)
	// Requeueing must survive shutdown or the job is lost.
	requeueCtx := context.WithoutCancel(ctx)
	switch {
	case err == nil && skipped:
		jobsProcessed.WithLabelValues(string(job.Type), "skipped").Inc()
	case err == nil:
		jobsProcessed.WithLabelValues(string(job.Type), "sent").Inc()
	case errors.Is(err, ErrInvalidPayload):
		jobsProcessed.WithLabelValues(string(job.Type), "dropped").Inc()
		p.logger.Error("job dropped", zap.String("job_id", job.ID), zap.Error(err))
		if dlErr := p.queue.DeadLetter(requeueCtx, job); dlErr != nil {
			p.logger.Error("dlq push failed", zap.Error(dlErr), zap.String("job_id", job.ID))
		}
	default:
		jobsProcessed.WithLabelValues(string(job.Type), "retried").Inc()
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if reErr := p.queue.Retry(requeueCtx, job); reErr != nil {
			p.logger.Error("retry enqueue failed", zap.Error(reErr), zap.String("job_id", job.ID))
		}
		sleep(ctx, p.backoff)
	}
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *EnrollMailProcessor) Run(ctx context.Context) {
	p.logger.Info("enroll mail worker started", zap.String("queue", queue.QueueEmails))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("enroll mail worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx, queue.QueueEmails)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, p.backoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		p.Handle(ctx, job)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
