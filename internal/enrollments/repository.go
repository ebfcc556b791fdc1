package enrollments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/database"
)

// Constraint names from the enrollments table.
const (
	constraintUserMeetup = "enrollments_user_meetup_key"
	constraintUserSlot   = "enrollments_user_slot_key"
)

// AfterInsertFunc runs inside the enrollment transaction once the view is available.
type AfterInsertFunc func(ctx context.Context, tx database.DBTX, view *models.EnrollmentView) error

const viewSelect = `SELECT e.id, e.user_id, e.meetup_id, e.created_at,
		u.name, u.email,
		m.id, m.title, m.location, m.starts_at, m.banner, m.organizer_id
	FROM enrollments e
	JOIN users u ON u.id = e.user_id
	JOIN meetups m ON m.id = e.meetup_id`

// Repository handles enrollment persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an enrollments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListSlots returns the meetup id and start time of every enrollment of the user in one query.
func (r *Repository) ListSlots(ctx context.Context, userID uuid.UUID) ([]models.EnrollmentSlot, error) {
	const q = `SELECT e.meetup_id, m.starts_at
		FROM enrollments e
		JOIN meetups m ON m.id = e.meetup_id
		WHERE e.user_id = $1`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EnrollmentSlot
	for rows.Next() {
		var s models.EnrollmentSlot
		if err := rows.Scan(&s.MeetupID, &s.StartsAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Create inserts the enrollment, reads back its view and runs afterInsert, all in one transaction.
// Unique violations map to ErrConstraintViolation (same meetup) or ErrTimeConflict (same instant).
func (r *Repository) Create(ctx context.Context, userID, meetupID uuid.UUID, afterInsert AfterInsertFunc) (*models.EnrollmentView, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// FOR SHARE waits out a concurrent reschedule so the copied slot is the committed one.
	var startsAt time.Time
	if err := tx.QueryRow(ctx, `SELECT starts_at FROM meetups WHERE id = $1 FOR SHARE`, meetupID).Scan(&startsAt); err != nil {
		if database.IsNoRows(err) {
			// Meetup deleted between the check and the insert.
			return nil, ErrMeetupNotFound
		}
		return nil, fmt.Errorf("lock meetup: %w", err)
	}

	const insert = `INSERT INTO enrollments (user_id, meetup_id, meetup_starts_at)
		VALUES ($1, $2, $3)
		RETURNING id`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, insert, userID, meetupID, startsAt).Scan(&id); err != nil {
		if name, ok := database.UniqueConstraint(err); ok {
			switch name {
			case constraintUserSlot:
				return nil, ErrTimeConflict
			case constraintUserMeetup:
				return nil, ErrConstraintViolation
			default:
				return nil, fmt.Errorf("insert enrollment: unexpected unique violation on %s: %w", name, err)
			}
		}
		return nil, fmt.Errorf("insert enrollment: %w", err)
	}

	view, err := scanView(tx.QueryRow(ctx, viewSelect+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("read enrollment: %w", err)
	}

	if afterInsert != nil {
		if err := afterInsert(ctx, tx, view); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return view, nil
}

// ListUpcoming returns the user's enrollments whose meetup starts at or after now, earliest first.
func (r *Repository) ListUpcoming(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.EnrollmentView, error) {
	rows, err := r.pool.Query(ctx, viewSelect+` WHERE e.user_id = $1 AND m.starts_at >= $2 ORDER BY m.starts_at ASC`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.EnrollmentView{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}

// CountByUserAndMeetup returns how many enrollment rows exist for the pair.
func (r *Repository) CountByUserAndMeetup(ctx context.Context, userID, meetupID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments WHERE user_id = $1 AND meetup_id = $2`, userID, meetupID).Scan(&n)
	return n, err
}

func scanView(row pgx.Row) (*models.EnrollmentView, error) {
	var v models.EnrollmentView
	err := row.Scan(&v.ID, &v.UserID, &v.MeetupID, &v.CreatedAt,
		&v.User.Name, &v.User.Email,
		&v.Meetup.ID, &v.Meetup.Title, &v.Meetup.Location, &v.Meetup.StartsAt, &v.Meetup.Banner, &v.Meetup.OrganizerID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
