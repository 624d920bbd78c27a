package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geonote/internal/models"
	"geonote/internal/repository"
)

// ValidationError reports a create/update input the store must refuse.
// It is surfaced to the caller as-is; the HTTP layer maps it to 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %q: %s", e.Field, e.Reason)
}

// InboxCache is the narrow caching contract the service needs for the
// inbox-all view. Implemented by cache.InboxCache; faked in tests.
type InboxCache interface {
	Get(ctx context.Context, recipient uuid.UUID) ([]models.Message, bool)
	Set(ctx context.Context, recipient uuid.UUID, messages []models.Message)
	Invalidate(ctx context.Context, recipients ...uuid.UUID)
	InvalidateAll(ctx context.Context)
}

// MessageService layers the message semantics over the store: required
// fields, defaults, the proximity and inbox-all reads, and cache upkeep
// on every write path. It holds no state of its own — every method is a
// single round trip to the store.
type MessageService struct {
	repo         repository.MessageRepository
	cache        InboxCache
	nearbyRadius float64
	logger       *zap.Logger
}

// NewMessageService wires the service. cache may be nil (seeding tools
// run without Redis); nearbyRadiusMeters comes from configuration.
func NewMessageService(repo repository.MessageRepository, cache InboxCache, nearbyRadiusMeters float64, logger *zap.Logger) *MessageService {
	return &MessageService{
		repo:         repo,
		cache:        cache,
		nearbyRadius: nearbyRadiusMeters,
		logger:       logger,
	}
}

// NearbyRadiusMeters reports the configured proximity cutoff.
func (s *MessageService) NearbyRadiusMeters() float64 {
	return s.nearbyRadius
}

// Create validates and persists a message.
//
// body, from and to are required; subject falls back to the placeholder;
// date falls back to the creation instant (applied by the store, so the
// returned message carries the stored value). The existence of the from
// and to users is deliberately not checked — the store trusts the caller
// on referential integrity.
func (s *MessageService) Create(ctx context.Context, m repository.NewMessage) (*models.Message, error) {
	if m.Body == "" {
		return nil, &ValidationError{Field: "body", Reason: "required"}
	}
	if m.From == uuid.Nil {
		return nil, &ValidationError{Field: "from", Reason: "required"}
	}
	if m.To == uuid.Nil {
		return nil, &ValidationError{Field: "to", Reason: "required"}
	}
	if m.Location != nil {
		if err := m.Location.Validate(); err != nil {
			return nil, &ValidationError{Field: "location", Reason: err.Error()}
		}
	}
	if m.Subject == "" {
		m.Subject = models.DefaultSubject
	}

	created, err := s.repo.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, created.ToID)
	return created, nil
}

// FindNearby returns the messages addressed to recipient whose location
// lies within the configured radius of point, nearest first.
//
// A nil point falls back to the origin — the deployed default for a
// query issued without coordinates. Callers that can tell "no location"
// from "at the origin" should prefer FindAllForRecipient.
func (s *MessageService) FindNearby(ctx context.Context, recipient uuid.UUID, point *models.Point) ([]models.Message, error) {
	if recipient == uuid.Nil {
		return nil, &ValidationError{Field: "recipient", Reason: "required"}
	}
	center := models.Origin
	if point != nil {
		if err := point.Validate(); err != nil {
			return nil, &ValidationError{Field: "point", Reason: err.Error()}
		}
		center = *point
	}

	return s.repo.Inbox(ctx, repository.InboxQuery{
		Recipient: recipient,
		Near: &repository.NearFilter{
			Center:            center,
			MaxDistanceMeters: s.nearbyRadius,
		},
	})
}

// FindAllForRecipient returns every message ever addressed to recipient,
// with no distance filter. Backs the notifications feed, so it reads
// through the cache.
func (s *MessageService) FindAllForRecipient(ctx context.Context, recipient uuid.UUID) ([]models.Message, error) {
	if recipient == uuid.Nil {
		return nil, &ValidationError{Field: "recipient", Reason: "required"}
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, recipient); ok {
			return cached, nil
		}
	}

	messages, err := s.repo.Inbox(ctx, repository.InboxQuery{Recipient: recipient})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, recipient, messages)
	}
	return messages, nil
}

func (s *MessageService) Get(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *MessageService) ListAll(ctx context.Context) ([]models.Message, error) {
	return s.repo.ListAll(ctx)
}

// Update applies a partial patch. The prior row is read first so both
// the old and new recipient inboxes can be invalidated when a message
// is re-addressed.
func (s *MessageService) Update(ctx context.Context, id uuid.UUID, patch repository.MessagePatch) (*models.Message, error) {
	if patch.Body != nil && *patch.Body == "" {
		return nil, &ValidationError{Field: "body", Reason: "must not be empty"}
	}
	if patch.Location != nil {
		if err := patch.Location.Validate(); err != nil {
			return nil, &ValidationError{Field: "location", Reason: err.Error()}
		}
	}

	prior, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, prior.ToID, updated.ToID)
	return updated, nil
}

// Remove deletes one message and returns the removed row.
func (s *MessageService) Remove(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, removed.ToID)
	return removed, nil
}

// RemoveAll deletes every message and reports the count.
func (s *MessageService) RemoveAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.InvalidateAll(ctx)
	}
	s.logger.Info("removed all messages", zap.Int64("count", n))
	return n, nil
}

func (s *MessageService) invalidate(ctx context.Context, recipients ...uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, recipients...)
	}
}
