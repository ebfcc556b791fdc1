package auth

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

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/response"
	"github.com/meetapp/backend/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[uuid.UUID]*models.User{}}
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memUsers) Create(_ context.Context, name, email, hash string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return nil, ErrEmailTaken
		}
	}
	u := &models.User{ID: uuid.New(), Name: name, Email: email, Password: hash, CreatedAt: time.Now()}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memUsers) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.users {
		if id != u.ID && other.Email == u.Email {
			return ErrEmailTaken
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func post(r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, response.Body) {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func newAuthRouter(store UserStore, jwt *JWTService, userID uuid.UUID) *gin.Engine {
	h := NewHandler(store, jwt, nil)
	r := gin.New()
	r.POST("/users", h.Register)
	r.POST("/sessions", h.Login)
	r.PUT("/users", func(c *gin.Context) {
		c.Set(ContextUserID, userID)
		c.Next()
	}, h.Update)
	return r
}

func TestRegisterAndLogin(t *testing.T) {
	store := newMemUsers()
	jwt := NewJWTService("secret", 1)
	r := newAuthRouter(store, jwt, uuid.Nil)

	w, _ := post(r, http.MethodPost, "/users", map[string]string{"name": "Bea", "email": "bea@example.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w, _ = post(r, http.MethodPost, "/users", map[string]string{"name": "Bea", "email": "bea@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = post(r, http.MethodPost, "/users", map[string]string{"name": "Cid", "email": "cid@example.com", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = post(r, http.MethodPost, "/sessions", map[string]string{"email": "bea@example.com", "password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := post(r, http.MethodPost, "/sessions", map[string]string{"email": "bea@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	token, _ := data["token"].(string)
	claims, err := jwt.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "bea@example.com", claims.Email)
}

func TestUpdate(t *testing.T) {
	store := newMemUsers()
	hash, err := utils.HashPassword("secret1")
	require.NoError(t, err)
	bea, err := store.Create(context.Background(), "Bea", "bea@example.com", hash)
	require.NoError(t, err)
	_, err = store.Create(context.Background(), "Cid", "cid@example.com", hash)
	require.NoError(t, err)

	r := newAuthRouter(store, NewJWTService("secret", 1), bea.ID)

	w, _ := post(r, http.MethodPut, "/users", map[string]string{"password": "newpass", "old_password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = post(r, http.MethodPut, "/users", map[string]string{"email": "cid@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = post(r, http.MethodPut, "/users", map[string]string{"name": "Beatriz", "password": "newpass", "old_password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)

	got, _ := store.GetByID(context.Background(), bea.ID)
	assert.Equal(t, "Beatriz", got.Name)
	assert.True(t, utils.CheckPassword("newpass", got.Password))

	unknown := newAuthRouter(store, NewJWTService("secret", 1), uuid.New())
	w, _ = post(unknown, http.MethodPut, "/users", map[string]string{"name": "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
