package meetups

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetapp/backend/internal/auth"
	"github.com/meetapp/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memStore struct {
	mu        sync.Mutex
	meetups   map[uuid.UUID]*models.Meetup
	updateErr error

	listDay  time.Time
	listPage int
}

func newMemStore() *memStore {
	return &memStore{meetups: map[uuid.UUID]*models.Meetup{}}
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Meetup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetups[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) Create(_ context.Context, m *models.Meetup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.New()
	cp := *m
	s.meetups[m.ID] = &cp
	return nil
}

func (s *memStore) ListByOrganizerOnDate(_ context.Context, organizerID uuid.UUID, day time.Time, page int) ([]models.MeetupWithOrganizer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listDay, s.listPage = day, page
	list := []models.MeetupWithOrganizer{}
	for _, m := range s.meetups {
		if m.OrganizerID == organizerID {
			list = append(list, models.MeetupWithOrganizer{Meetup: *m})
		}
	}
	return list, nil
}

func (s *memStore) Update(_ context.Context, m *models.Meetup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	cp := *m
	s.meetups[m.ID] = &cp
	return nil
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetups[id]; !ok {
		return ErrNotFound
	}
	delete(s.meetups, id)
	return nil
}

func (s *memStore) add(m models.Meetup) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.New()
	s.meetups[m.ID] = &m
	return m.ID
}

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newRouter(store Store, userID uuid.UUID) *gin.Engine {
	h := NewHandler(store, func() time.Time { return testNow }, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(auth.ContextUserID, userID)
		c.Next()
	})
	r.GET("/meetups", h.Index)
	r.POST("/meetups", h.Store)
	owned := r.Group("/meetups/:id", RequireOrganizer(store, nil))
	owned.PUT("", h.Update)
	owned.DELETE("", h.Delete)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validBody(startsAt time.Time) map[string]any {
	return map[string]any{
		"title":       "Talk",
		"description": "Go concurrency",
		"location":    "Room 1",
		"starts_at":   startsAt.Format(time.RFC3339),
		"banner":      "banner.png",
	}
}

func TestHandler_Store(t *testing.T) {
	store := newMemStore()
	user := uuid.New()
	r := newRouter(store, user)

	w := do(r, http.MethodPost, "/meetups", validBody(testNow.Add(-time.Hour)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "past dates")

	w = do(r, http.MethodPost, "/meetups", map[string]any{"title": "Talk"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/meetups", validBody(testNow.Add(24*time.Hour)))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.meetups, 1)
	for _, m := range store.meetups {
		assert.Equal(t, user, m.OrganizerID)
		assert.Equal(t, "Talk", m.Title)
	}
}

func TestHandler_Index(t *testing.T) {
	store := newMemStore()
	user := uuid.New()
	store.add(models.Meetup{Title: "Talk", StartsAt: testNow.Add(time.Hour), OrganizerID: user})
	store.add(models.Meetup{Title: "Other", StartsAt: testNow.Add(time.Hour), OrganizerID: uuid.New()})
	r := newRouter(store, user)

	w := do(r, http.MethodGet, "/meetups?date=2026-05-03&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC), store.listDay)
	assert.Equal(t, 2, store.listPage)
	assert.Contains(t, w.Body.String(), "Talk")
	assert.NotContains(t, w.Body.String(), "Other")

	w = do(r, http.MethodGet, "/meetups", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, store.listPage)
	assert.Equal(t, testNow, store.listDay)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/meetups?date=03/05/2026", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/meetups?page=0", nil).Code)
}

func TestHandler_Update(t *testing.T) {
	store := newMemStore()
	organizer := uuid.New()
	id := store.add(models.Meetup{Title: "Talk", StartsAt: testNow.Add(time.Hour), OrganizerID: organizer})

	body := validBody(testNow.Add(48 * time.Hour))
	body["title"] = "Talk v2"

	assert.Equal(t, http.StatusForbidden, do(newRouter(store, uuid.New()), http.MethodPut, "/meetups/"+id.String(), body).Code)
	assert.Equal(t, http.StatusNotFound, do(newRouter(store, organizer), http.MethodPut, "/meetups/"+uuid.NewString(), body).Code)
	assert.Equal(t, http.StatusBadRequest, do(newRouter(store, organizer), http.MethodPut, "/meetups/nope", body).Code)
	assert.Equal(t, http.StatusBadRequest, do(newRouter(store, organizer), http.MethodPut, "/meetups/"+id.String(), validBody(testNow.Add(-time.Minute))).Code)

	store.updateErr = ErrScheduleConflict
	assert.Equal(t, http.StatusConflict, do(newRouter(store, organizer), http.MethodPut, "/meetups/"+id.String(), body).Code)
	assert.Equal(t, "Talk", store.meetups[id].Title)

	store.updateErr = nil
	w := do(newRouter(store, organizer), http.MethodPut, "/meetups/"+id.String(), body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Talk v2", store.meetups[id].Title)
	assert.True(t, store.meetups[id].StartsAt.Equal(testNow.Add(48*time.Hour)))
}

func TestHandler_Delete(t *testing.T) {
	store := newMemStore()
	organizer := uuid.New()
	upcoming := store.add(models.Meetup{Title: "Talk", StartsAt: testNow.Add(time.Hour), OrganizerID: organizer})
	past := store.add(models.Meetup{Title: "Retro", StartsAt: testNow.Add(-time.Hour), OrganizerID: organizer})

	assert.Equal(t, http.StatusForbidden, do(newRouter(store, uuid.New()), http.MethodDelete, "/meetups/"+upcoming.String(), nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(newRouter(store, organizer), http.MethodDelete, "/meetups/"+past.String(), nil).Code)
	assert.Equal(t, http.StatusNoContent, do(newRouter(store, organizer), http.MethodDelete, "/meetups/"+upcoming.String(), nil).Code)

	assert.NotContains(t, store.meetups, upcoming)
	assert.Contains(t, store.meetups, past)
}
