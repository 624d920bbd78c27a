package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"geonote/internal/models"
)

// ErrNotFound is returned by any lookup that matches no row.
// Callers branch on it with errors.Is — it is never wrapped away.
var ErrNotFound = errors.New("not found")

// NewMessage carries the caller-supplied fields of a message create.
// Date and Location are optional; the store applies its own defaults
// (date = now, location = none).
type NewMessage struct {
	Subject  string
	Body     string
	From     uuid.UUID
	To       uuid.UUID
	Date     *time.Time
	Location *models.Point
}

// MessagePatch is a partial update. Nil fields are left untouched.
type MessagePatch struct {
	Subject  *string
	Body     *string
	Date     *time.Time
	From     *uuid.UUID
	To       *uuid.UUID
	Location *models.Point
}

// NearFilter restricts an inbox query to messages whose location lies
// within MaxDistanceMeters of Center, great-circle.
type NearFilter struct {
	Center            models.Point
	MaxDistanceMeters float64
}

// InboxQuery is the one read contract over a recipient's messages,
// expressed as a tagged variant instead of ad hoc parameter branching:
//
//	Near == nil  → inbox-all: every message addressed to Recipient,
//	               in insertion order.
//	Near != nil  → proximity query: messages within the radius,
//	               ordered nearest first.
//
// Both variants resolve From/To to full user records.
type InboxQuery struct {
	Recipient uuid.UUID
	Near      *NearFilter
}

// MessageRepository is the persistence contract for messages.
type MessageRepository interface {
	// Create persists a message and returns it with ID and Date populated.
	Create(ctx context.Context, m NewMessage) (*models.Message, error)

	// GetByID returns one message or ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)

	// Update applies a partial patch and returns the updated message,
	// or ErrNotFound.
	Update(ctx context.Context, id uuid.UUID, patch MessagePatch) (*models.Message, error)

	// Delete removes one message and returns the removed row, or ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) (*models.Message, error)

	// DeleteAll removes every message and reports how many went.
	DeleteAll(ctx context.Context) (int64, error)

	// ListAll returns every message, unpopulated. Debug/admin listing;
	// no pagination by design.
	ListAll(ctx context.Context) ([]models.Message, error)

	// Inbox runs an InboxQuery. Empty result is a valid, non-error answer.
	Inbox(ctx context.Context, q InboxQuery) ([]models.Message, error)
}

// NewUser carries the caller-supplied fields of a user create.
type NewUser struct {
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
}

// UserPatch is a partial user update. Nil fields are left untouched.
type UserPatch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Friends   *[]uuid.UUID
}

// UserRepository is the persistence contract for users.
type UserRepository interface {
	Create(ctx context.Context, u NewUser) (*models.User, error)

	// GetByID returns one user or ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetByEmail returns one user or ErrNotFound. Used by login.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	List(ctx context.Context) ([]models.User, error)

	Update(ctx context.Context, id uuid.UUID, patch UserPatch) (*models.User, error)

	// Delete removes one user and returns the removed row, or ErrNotFound.
	Delete(ctx context.Context, id uuid.UUID) (*models.User, error)

	// ListFriends resolves the user's friends array to full user rows.
	// Returns ErrNotFound if the user itself does not exist.
	ListFriends(ctx context.Context, id uuid.UUID) ([]models.User, error)
}
