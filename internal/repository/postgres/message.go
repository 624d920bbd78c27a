package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"geonote/internal/models"
	"geonote/internal/repository"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// messageColumns is the unpopulated projection. The geography column is
// decomposed back into lon/lat on the way out — the typed Point is the
// only coordinate representation Go code ever sees.
const messageColumns = `id, date, subject, body, from_id, to_id,
	ST_X(location::geometry), ST_Y(location::geometry)`

// geogExpr builds a geography point from two float8 placeholders.
// ST_MakePoint(NULL, NULL) is NULL, so a message without a location
// inserts cleanly through the same expression.
func geogExpr(lonArg, latArg int) string {
	return fmt.Sprintf("ST_SetSRID(ST_MakePoint($%d::float8, $%d::float8), 4326)::geography", lonArg, latArg)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg      models.Message
		lon, lat *float64
	)
	err := row.Scan(
		&msg.ID,
		&msg.Date,
		&msg.Subject,
		&msg.Body,
		&msg.FromID,
		&msg.ToID,
		&lon,
		&lat,
	)
	if err != nil {
		return nil, err
	}
	if lon != nil && lat != nil {
		msg.Location = &models.Point{Longitude: *lon, Latitude: *lat}
	}
	return &msg, nil
}

func (s *MessageStore) Create(ctx context.Context, m repository.NewMessage) (*models.Message, error) {
	var lon, lat *float64
	if m.Location != nil {
		lon, lat = &m.Location.Longitude, &m.Location.Latitude
	}

	// COALESCE keeps the "date defaults to creation time" rule in the
	// store itself, so the returned row always carries the stored value.
	query := `
		INSERT INTO messages (date, subject, body, from_id, to_id, location)
		VALUES (COALESCE($1, now()), $2, $3, $4, $5, ` + geogExpr(6, 7) + `)
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, m.Date, m.Subject, m.Body, m.From, m.To, lon, lat))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// buildMessageUpdate renders a MessagePatch into a SET clause. Returns
// an empty query when the patch carries nothing to change.
func buildMessageUpdate(id uuid.UUID, patch repository.MessagePatch) (string, []any) {
	set := make([]string, 0, 6)
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Subject != nil {
		add("subject", *patch.Subject)
	}
	if patch.Body != nil {
		add("body", *patch.Body)
	}
	if patch.Date != nil {
		add("date", *patch.Date)
	}
	if patch.From != nil {
		add("from_id", *patch.From)
	}
	if patch.To != nil {
		add("to_id", *patch.To)
	}
	if patch.Location != nil {
		args = append(args, patch.Location.Longitude, patch.Location.Latitude)
		set = append(set, "location = "+geogExpr(len(args)-1, len(args)))
	}

	if len(set) == 0 {
		return "", nil
	}

	query := `UPDATE messages SET ` + strings.Join(set, ", ") +
		` WHERE id = $1 RETURNING ` + messageColumns
	return query, args
}

func (s *MessageStore) Update(ctx context.Context, id uuid.UUID, patch repository.MessagePatch) (*models.Message, error) {
	query, args := buildMessageUpdate(id, patch)
	if query == "" {
		// Nothing to change; an empty patch is a read.
		return s.GetByID(ctx, id)
	}

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) Delete(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query := `DELETE FROM messages WHERE id = $1 RETURNING ` + messageColumns

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("delete message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("delete all messages: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *MessageStore) ListAll(ctx context.Context) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages ORDER BY date`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// inboxColumns extends the message projection with both joined users.
// LEFT JOINs because from_id/to_id carry no FK constraint — a dangling
// reference still returns the message, just without the resolved user.
const inboxColumns = `
	m.id, m.date, m.subject, m.body, m.from_id, m.to_id,
	ST_X(m.location::geometry), ST_Y(m.location::geometry),
	f.id, f.email, f.first_name, f.last_name, f.friends, f.created_at,
	t.id, t.email, t.first_name, t.last_name, t.friends, t.created_at`

const inboxFrom = `
	FROM messages m
	LEFT JOIN users f ON f.id = m.from_id
	LEFT JOIN users t ON t.id = m.to_id`

// buildInboxQuery renders the two InboxQuery variants. The near variant
// leans entirely on the GIST index: ST_DWithin for the radius cut,
// ST_Distance for the nearest-first order, both spherical (geography).
func buildInboxQuery(q repository.InboxQuery) (string, []any) {
	if q.Near != nil {
		ref := geogExpr(2, 3)
		query := `SELECT` + inboxColumns + inboxFrom + `
	WHERE m.to_id = $1
	  AND m.location IS NOT NULL
	  AND ST_DWithin(m.location, ` + ref + `, $4)
	ORDER BY ST_Distance(m.location, ` + ref + `)`
		return query, []any{q.Recipient, q.Near.Center.Longitude, q.Near.Center.Latitude, q.Near.MaxDistanceMeters}
	}

	query := `SELECT` + inboxColumns + inboxFrom + `
	WHERE m.to_id = $1
	ORDER BY m.date`
	return query, []any{q.Recipient}
}

func (s *MessageStore) Inbox(ctx context.Context, q repository.InboxQuery) ([]models.Message, error) {
	query, args := buildInboxQuery(q)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inbox query: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanInboxRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inbox row: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inbox rows: %w", err)
	}

	return messages, nil
}

// joinedUser holds one side of the LEFT JOIN; every column is nullable
// because the whole row may be absent.
type joinedUser struct {
	id        *uuid.UUID
	email     *string
	firstName *string
	lastName  *string
	friends   []uuid.UUID
	createdAt *time.Time
}

func (j joinedUser) toUser() *models.User {
	if j.id == nil {
		return nil
	}
	u := &models.User{
		ID:        *j.id,
		Friends:   j.friends,
		CreatedAt: *j.createdAt,
	}
	if j.email != nil {
		u.Email = *j.email
	}
	if j.firstName != nil {
		u.FirstName = *j.firstName
	}
	if j.lastName != nil {
		u.LastName = *j.lastName
	}
	return u
}

func scanInboxRow(row rowScanner) (*models.Message, error) {
	var (
		msg      models.Message
		lon, lat *float64
		from, to joinedUser
	)
	err := row.Scan(
		&msg.ID,
		&msg.Date,
		&msg.Subject,
		&msg.Body,
		&msg.FromID,
		&msg.ToID,
		&lon,
		&lat,
		&from.id, &from.email, &from.firstName, &from.lastName, &from.friends, &from.createdAt,
		&to.id, &to.email, &to.firstName, &to.lastName, &to.friends, &to.createdAt,
	)
	if err != nil {
		return nil, err
	}
	if lon != nil && lat != nil {
		msg.Location = &models.Point{Longitude: *lon, Latitude: *lat}
	}
	msg.From = from.toUser()
	msg.To = to.toUser()
	return &msg, nil
}
