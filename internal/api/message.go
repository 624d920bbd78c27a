package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"geonote/internal/models"
	"geonote/internal/repository"
)

// MessageService is the slice of the core the message handlers need.
// Satisfied by *service.MessageService; faked in tests.
type MessageService interface {
	Create(ctx context.Context, m repository.NewMessage) (*models.Message, error)
	FindNearby(ctx context.Context, recipient uuid.UUID, point *models.Point) ([]models.Message, error)
	FindAllForRecipient(ctx context.Context, recipient uuid.UUID) ([]models.Message, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListAll(ctx context.Context) ([]models.Message, error)
	Update(ctx context.Context, id uuid.UUID, patch repository.MessagePatch) (*models.Message, error)
	Remove(ctx context.Context, id uuid.UUID) (*models.Message, error)
	RemoveAll(ctx context.Context) (int64, error)
}

type MessageHandler struct {
	svc    MessageService
	logger *zap.Logger
}

func NewMessageHandler(svc MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, logger: logger}
}

type createMessageRequest struct {
	Subject  string        `json:"subject"`
	Body     string        `json:"body"`
	From     uuid.UUID     `json:"from"`
	To       uuid.UUID     `json:"to"`
	Date     *time.Time    `json:"date"`
	Location *models.Point `json:"location"`
}

// Create handles POST /api/messages
//
// Required-field and coordinate validation lives in the service, so a
// missing body comes back as the same ValidationError regardless of
// which caller produced it.
func (h *MessageHandler) Create(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.Create(c.Request.Context(), repository.NewMessage{
		Subject:  req.Subject,
		Body:     req.Body,
		From:     req.From,
		To:       req.To,
		Date:     req.Date,
		Location: req.Location,
	})
	if err != nil {
		writeError(c, h.logger, err, "create message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /api/messages — the administrative full listing.
func (h *MessageHandler) List(c *gin.Context) {
	messages, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

// Get handles GET /api/messages/:id
func (h *MessageHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	msg, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "get message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

type updateMessageRequest struct {
	Subject  *string       `json:"subject"`
	Body     *string       `json:"body"`
	Date     *time.Time    `json:"date"`
	From     *uuid.UUID    `json:"from"`
	To       *uuid.UUID    `json:"to"`
	Location *models.Point `json:"location"`
}

// Update handles PUT /api/messages/:id — a partial update; absent
// fields are left as stored.
func (h *MessageHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.Update(c.Request.Context(), id, repository.MessagePatch{
		Subject:  req.Subject,
		Body:     req.Body,
		Date:     req.Date,
		From:     req.From,
		To:       req.To,
		Location: req.Location,
	})
	if err != nil {
		writeError(c, h.logger, err, "update message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /api/messages/:id and echoes the removed row.
func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	msg, err := h.svc.Remove(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "delete message")
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteAll handles DELETE /api/messages
func (h *MessageHandler) DeleteAll(c *gin.Context) {
	n, err := h.svc.RemoveAll(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, "delete messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// Nearby handles GET /api/messages/to/:id?lon=&lat=
//
// lon and lat travel together: both present → that point; both absent →
// the deployed origin default (the service substitutes it); exactly one
// present → 400, instead of silently zero-filling the other axis.
func (h *MessageHandler) Nearby(c *gin.Context) {
	recipient, ok := pathID(c)
	if !ok {
		return
	}

	lonStr, hasLon := c.GetQuery("lon")
	latStr, hasLat := c.GetQuery("lat")
	if hasLon != hasLat {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lon and lat must be supplied together"})
		return
	}

	var point *models.Point
	if hasLon {
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'lon' parameter"})
			return
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'lat' parameter"})
			return
		}
		point = &models.Point{Longitude: lon, Latitude: lat}
	}

	messages, err := h.svc.FindNearby(c.Request.Context(), recipient, point)
	if err != nil {
		writeError(c, h.logger, err, "find nearby messages")
		return
	}
	c.JSON(http.StatusOK, messages)
}

// InboxAll handles GET /api/messages/to/all/:id — the notifications
// feed, no distance filter.
func (h *MessageHandler) InboxAll(c *gin.Context) {
	recipient, ok := pathID(c)
	if !ok {
		return
	}
	messages, err := h.svc.FindAllForRecipient(c.Request.Context(), recipient)
	if err != nil {
		writeError(c, h.logger, err, "list inbox")
		return
	}
	c.JSON(http.StatusOK, messages)
}
