package enrollments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/internal/testutil/pgtest"
	"github.com/meetapp/backend/pkg/database"
)

func TestRepository_CreateAndList(t *testing.T) {
	pool := pgtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	organizer := pgtest.InsertUser(t, pool, "Olga", "olga@example.com")
	user := pgtest.InsertUser(t, pool, "Bea", "bea@example.com")
	now := time.Now().UTC().Truncate(time.Second)
	later := pgtest.InsertMeetup(t, pool, "Later", now.Add(72*time.Hour), organizer)
	sooner := pgtest.InsertMeetup(t, pool, "Sooner", now.Add(24*time.Hour), organizer)

	var hooked *models.EnrollmentView
	view, err := repo.Create(ctx, user, later, func(_ context.Context, tx database.DBTX, v *models.EnrollmentView) error {
		require.NotNil(t, tx)
		hooked = v
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, view, hooked)
	assert.Equal(t, "Bea", view.User.Name)
	assert.Equal(t, "bea@example.com", view.User.Email)
	assert.Equal(t, "Later", view.Meetup.Title)
	assert.Equal(t, organizer, view.Meetup.OrganizerID)

	_, err = repo.Create(ctx, user, sooner, nil)
	require.NoError(t, err)

	slots, err := repo.ListSlots(ctx, user)
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	list, err := repo.ListUpcoming(ctx, user, now)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Sooner", list[0].Meetup.Title)
	assert.Equal(t, "Later", list[1].Meetup.Title)

	list, err = repo.ListUpcoming(ctx, user, now.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Later", list[0].Meetup.Title)
}

func TestRepository_CreateConstraints(t *testing.T) {
	pool := pgtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	organizer := pgtest.InsertUser(t, pool, "Olga", "olga@example.com")
	user := pgtest.InsertUser(t, pool, "Bea", "bea@example.com")
	at := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	talk := pgtest.InsertMeetup(t, pool, "Talk", at, organizer)
	workshop := pgtest.InsertMeetup(t, pool, "Workshop", at, organizer)

	_, err := repo.Create(ctx, user, talk, nil)
	require.NoError(t, err)

	_, err = repo.Create(ctx, user, talk, nil)
	assert.Same(t, ErrConstraintViolation, err)

	_, err = repo.Create(ctx, user, workshop, nil)
	assert.Same(t, ErrTimeConflict, err)

	_, err = repo.Create(ctx, user, organizer, nil)
	assert.Same(t, ErrMeetupNotFound, err, "an id that names no meetup inserts nothing")
}

func TestRepository_CreateRollsBackOnHookError(t *testing.T) {
	pool := pgtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	organizer := pgtest.InsertUser(t, pool, "Olga", "olga@example.com")
	user := pgtest.InsertUser(t, pool, "Bea", "bea@example.com")
	talk := pgtest.InsertMeetup(t, pool, "Talk", time.Now().Add(time.Hour), organizer)

	boom := errors.New("notification failed")
	_, err := repo.Create(ctx, user, talk, func(context.Context, database.DBTX, *models.EnrollmentView) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := repo.CountByUserAndMeetup(ctx, user, talk)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRepository_ConcurrentCreate(t *testing.T) {
	pool := pgtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()

	organizer := pgtest.InsertUser(t, pool, "Olga", "olga@example.com")
	user := pgtest.InsertUser(t, pool, "Bea", "bea@example.com")
	talk := pgtest.InsertMeetup(t, pool, "Talk", time.Now().Add(time.Hour), organizer)

	const attempts = 10
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Create(ctx, user, talk, nil)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Same(t, ErrConstraintViolation, err)
	}
	assert.Equal(t, 1, ok)

	n, err := repo.CountByUserAndMeetup(ctx, user, talk)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
