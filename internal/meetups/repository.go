package meetups

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/database"
)

// PageSize is the number of meetups per listing page.
const PageSize = 10

const constraintUserSlot = "enrollments_user_slot_key"

var (
	// ErrNotFound is returned when the meetup to change no longer exists.
	ErrNotFound = errors.New("meetup not found")
	// ErrScheduleConflict is returned when moving a meetup would put an attendee in two meetups at once.
	ErrScheduleConflict = errors.New("an attendee is already enrolled in another meetup at this date and time")
)

const meetupColumns = `id, title, description, location, starts_at, banner, organizer_id, created_at, updated_at`

// Repository handles meetup persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meetup repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new meetup.
func (r *Repository) Create(ctx context.Context, m *models.Meetup) error {
	const q = `INSERT INTO meetups (title, description, location, starts_at, banner, organizer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, m.Title, m.Description, m.Location, m.StartsAt, m.Banner, m.OrganizerID).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// GetByID returns a meetup by ID, or nil, nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meetup, error) {
	var m models.Meetup
	err := r.pool.QueryRow(ctx, `SELECT `+meetupColumns+` FROM meetups WHERE id = $1`, id).
		Scan(&m.ID, &m.Title, &m.Description, &m.Location, &m.StartsAt, &m.Banner, &m.OrganizerID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListByOrganizerOnDate returns one page of the organizer's meetups starting within the UTC day of day, earliest first.
func (r *Repository) ListByOrganizerOnDate(ctx context.Context, organizerID uuid.UUID, day time.Time, page int) ([]models.MeetupWithOrganizer, error) {
	if page < 1 {
		page = 1
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	const q = `SELECT m.id, m.title, m.description, m.location, m.starts_at, m.banner, m.organizer_id, m.created_at, m.updated_at,
			u.name, u.email
		FROM meetups m
		JOIN users u ON u.id = m.organizer_id
		WHERE m.organizer_id = $1 AND m.starts_at >= $2 AND m.starts_at < $3
		ORDER BY m.starts_at ASC
		LIMIT $4 OFFSET $5`
	rows, err := r.pool.Query(ctx, q, organizerID, from, to, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.MeetupWithOrganizer{}
	for rows.Next() {
		var m models.MeetupWithOrganizer
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Location, &m.StartsAt, &m.Banner, &m.OrganizerID, &m.CreatedAt, &m.UpdatedAt,
			&m.Organizer.Name, &m.Organizer.Email); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Update replaces the meetup's editable fields and moves its enrollments to the new start time in one transaction.
func (r *Repository) Update(ctx context.Context, m *models.Meetup) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `UPDATE meetups
		SET title = $1, description = $2, location = $3, starts_at = $4, banner = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`
	if err := tx.QueryRow(ctx, q, m.Title, m.Description, m.Location, m.StartsAt, m.Banner, m.ID).Scan(&m.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update meetup: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE enrollments SET meetup_starts_at = $1 WHERE meetup_id = $2`, m.StartsAt, m.ID); err != nil {
		if name, ok := database.UniqueConstraint(err); ok && name == constraintUserSlot {
			return ErrScheduleConflict
		}
		return fmt.Errorf("move enrollments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes a meetup; its enrollments go with it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meetups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
