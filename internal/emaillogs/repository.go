package emaillogs

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/database"
)

// ListLimit caps how many logs one listing returns.
const ListLimit = 50

const logColumns = `id, job_id, email_type, enrollment_id, recipient_email, subject, status, sent_at, error_message, created_at`

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByJobID returns the log for a queue job, or nil, nil if the job was never attempted.
func (r *Repository) GetByJobID(ctx context.Context, jobID string) (*models.EmailLog, error) {
	el, err := scanLog(r.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM email_logs WHERE job_id = $1`, jobID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return el, nil
}

// Upsert records the outcome of an attempt. One row per job; later attempts overwrite status and error.
func (r *Repository) Upsert(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (job_id, email_type, enrollment_id, recipient_email, subject, status, sent_at, error_message)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''))
		ON CONFLICT (job_id) DO UPDATE SET
			subject = EXCLUDED.subject,
			status = EXCLUDED.status,
			sent_at = EXCLUDED.sent_at,
			error_message = EXCLUDED.error_message,
			updated_at = NOW()
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		el.JobID, el.EmailType, el.EnrollmentID, el.RecipientEmail, el.Subject, el.Status, el.SentAt, el.ErrorMessage,
	).Scan(&el.ID, &el.CreatedAt)
}

// ListByRecipient returns the newest logs addressed to email.
func (r *Repository) ListByRecipient(ctx context.Context, email string) ([]*models.EmailLog, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+logColumns+`
		FROM email_logs
		WHERE recipient_email = $1
		ORDER BY created_at DESC
		LIMIT $2`, email, ListLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		el, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}

func scanLog(row pgx.Row) (*models.EmailLog, error) {
	var el models.EmailLog
	var subject, errMsg *string
	if err := row.Scan(&el.ID, &el.JobID, &el.EmailType, &el.EnrollmentID, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
		return nil, err
	}
	if subject != nil {
		el.Subject = *subject
	}
	if errMsg != nil {
		el.ErrorMessage = *errMsg
	}
	return &el, nil
}
