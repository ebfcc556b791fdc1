package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/response"
	"github.com/meetapp/backend/pkg/utils"
)

// ContextUserID is the key for the authenticated user ID in gin context.
const ContextUserID = "user_id"

// UserStore is the persistence the auth handler needs.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, name, email, passwordHash string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
}

// RegisterRequest is the body for POST /users.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the body for POST /sessions.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateRequest is the body for PUT /users. Password change requires OldPassword.
type UpdateRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email" binding:"omitempty,email"`
	OldPassword string `json:"old_password"`
	Password    string `json:"password" binding:"omitempty,min=6"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// Handler handles user and session HTTP endpoints.
type Handler struct {
	repo   UserStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo UserStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, logger: logger}
}

// Register handles POST /users.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	existing, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("lookup user by email failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}
	if existing != nil {
		response.BadRequest(c, ErrEmailTaken.Error())
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Name, req.Email, hash)
	if errors.Is(err, ErrEmailTaken) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	response.Created(c, user.ToPublic())
}

// Login handles POST /sessions.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("lookup user by email failed", zap.Error(err))
		response.Internal(c, "failed to sign in")
		return
	}
	if user == nil || !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	c.JSON(http.StatusOK, response.Body{Success: true, Data: TokenResponse{Token: token, User: user.ToPublic()}})
}

// Update handles PUT /users for the authenticated user.
func (h *Handler) Update(c *gin.Context) {
	userID, ok := UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("get user failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to update user")
		return
	}
	if user == nil {
		response.BadRequest(c, "user does not exist")
		return
	}

	if req.Password != "" {
		if req.OldPassword == "" || !utils.CheckPassword(req.OldPassword, user.Password) {
			response.Unauthorized(c, "password does not match")
			return
		}
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		user.Password = hash
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}

	if err := h.repo.Update(c.Request.Context(), user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("update user failed", zap.Error(err), zap.String("user_id", userID.String()))
		response.Internal(c, "failed to update user")
		return
	}
	response.OK(c, user.ToPublic())
}

// UserIDFrom returns the authenticated user ID stored by the JWT middleware.
func UserIDFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
