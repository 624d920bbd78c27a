package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"geonote/internal/repository"
)

type UserHandler struct {
	repo   repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(repo repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{repo: repo, logger: logger}
}

// List handles GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.repo.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "list users")
		return
	}
	c.JSON(http.StatusOK, users)
}

type createUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// Create handles POST /api/users. Password is optional here — a user
// created without one simply cannot log in (seed/demo accounts).
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var hash string
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("failed to hash password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
			return
		}
		hash = string(hashed)
	}

	user, err := h.repo.Create(c.Request.Context(), repository.NewUser{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
	})
	if err != nil {
		writeError(c, h.logger, err, "create user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Get handles GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "get user")
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateUserRequest struct {
	Email     *string      `json:"email"`
	FirstName *string      `json:"first_name"`
	LastName  *string      `json:"last_name"`
	Friends   *[]uuid.UUID `json:"friends"`
}

// Update handles PUT /api/users/:id — partial update, including the
// friends array.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.repo.Update(c.Request.Context(), id, repository.UserPatch{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Friends:   req.Friends,
	})
	if err != nil {
		writeError(c, h.logger, err, "update user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /api/users/:id and echoes the removed row.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.repo.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "delete user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// Friends handles GET /api/users/:id/friends — the friends array
// resolved to full user records.
func (h *UserHandler) Friends(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	friends, err := h.repo.ListFriends(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "list friends")
		return
	}
	c.JSON(http.StatusOK, friends)
}
