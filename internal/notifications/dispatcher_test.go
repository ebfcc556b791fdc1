package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/database"
)

type memStore struct {
	created []models.Notification
	err     error
}

func (m *memStore) Create(_ context.Context, _ database.DBTX, n *models.Notification) error {
	if m.err != nil {
		return m.err
	}
	n.ID = uuid.New()
	m.created = append(m.created, *n)
	return nil
}

type recordingPublisher struct {
	userID  uuid.UUID
	event   string
	payload []byte
	err     error
}

func (p *recordingPublisher) PublishUser(_ context.Context, userID uuid.UUID, event string, payload []byte) error {
	p.userID, p.event, p.payload = userID, event, payload
	return p.err
}

func enrollmentView(organizer uuid.UUID) *models.EnrollmentView {
	return &models.EnrollmentView{
		Enrollment: models.Enrollment{ID: uuid.New(), UserID: uuid.New()},
		User:       models.UserRef{Name: "Bea", Email: "bea@example.com"},
		Meetup:     models.EnrolledMeetup{ID: uuid.New(), Title: "Talk", OrganizerID: organizer},
	}
}

func TestEnrollmentContent(t *testing.T) {
	assert.Equal(t, "New enrollment from Bea for meetup Talk!", EnrollmentContent(enrollmentView(uuid.New())))
}

func TestDispatcher_Record(t *testing.T) {
	organizer := uuid.New()
	store := &memStore{}
	d := NewDispatcher(store, nil, nil)

	n, err := d.Record(context.Background(), nil, enrollmentView(organizer))
	require.NoError(t, err)
	assert.Equal(t, organizer, n.UserID)
	assert.NotEqual(t, uuid.Nil, n.ID)
	require.Len(t, store.created, 1)
	assert.Contains(t, store.created[0].Content, "Bea")
	assert.Contains(t, store.created[0].Content, "Talk")
}

func TestDispatcher_RecordError(t *testing.T) {
	boom := errors.New("insert failed")
	d := NewDispatcher(&memStore{err: boom}, nil, nil)

	n, err := d.Record(context.Background(), nil, enrollmentView(uuid.New()))
	assert.Nil(t, n)
	assert.ErrorIs(t, err, boom)
}

func TestDispatcher_Publish(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(&memStore{}, pub, nil)
	n := &models.Notification{ID: uuid.New(), UserID: uuid.New(), Content: "hi"}

	d.Publish(context.Background(), n)

	assert.Equal(t, n.UserID, pub.userID)
	assert.Equal(t, EventNotification, pub.event)
	var got models.Notification
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "hi", got.Content)
}

func TestDispatcher_PublishFailureOnlyLogs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	pub := &recordingPublisher{err: errors.New("redis down")}
	d := NewDispatcher(&memStore{}, pub, zap.New(core))

	assert.NotPanics(t, func() {
		d.Publish(context.Background(), &models.Notification{UserID: uuid.New()})
		d.Publish(context.Background(), nil)
	})
	assert.Equal(t, 1, logs.FilterMessage("publish notification failed").Len())
}

func TestDispatcher_PublishWithoutPublisher(t *testing.T) {
	d := NewDispatcher(&memStore{}, nil, nil)
	assert.NotPanics(t, func() {
		d.Publish(context.Background(), &models.Notification{UserID: uuid.New()})
	})
}
