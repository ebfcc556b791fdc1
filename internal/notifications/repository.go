package notifications

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/database"
)

// ListLimit caps how many notifications one listing returns.
const ListLimit = 50

// Repository handles notification persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a notifications repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts n using db, which may be a transaction owned by the caller.
func (r *Repository) Create(ctx context.Context, db database.DBTX, n *models.Notification) error {
	if db == nil {
		db = r.pool
	}
	const q = `INSERT INTO notifications (user_id, content)
		VALUES ($1, $2)
		RETURNING id, read, created_at`
	return db.QueryRow(ctx, q, n.UserID, n.Content).Scan(&n.ID, &n.Read, &n.CreatedAt)
}

// ListByUser returns the user's newest notifications first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	const q = `SELECT id, user_id, content, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, userID, ListLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Content, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// MarkRead flags one of the user's notifications as read. Returns nil, nil when it is not theirs.
func (r *Repository) MarkRead(ctx context.Context, id, userID uuid.UUID) (*models.Notification, error) {
	const q = `UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, content, read, created_at`
	var n models.Notification
	err := r.pool.QueryRow(ctx, q, id, userID).Scan(&n.ID, &n.UserID, &n.Content, &n.Read, &n.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}
