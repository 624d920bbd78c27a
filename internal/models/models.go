package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a person who can leave and receive geotagged messages.
//
// Friends is stored denormalized as an id array, mirroring the document
// shape the rest of the system was built around. The repository resolves
// it to full User rows on demand; nothing validates friendship state when
// a message is routed (messages between non-friends are allowed).
//
// PasswordHash never leaves the server: json:"-".
type User struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	FirstName    string      `json:"first_name,omitempty"`
	LastName     string      `json:"last_name,omitempty"`
	PasswordHash string      `json:"-"`
	Friends      []uuid.UUID `json:"friends"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Message is a note left at a geographic point for one recipient.
//
// FromID/ToID are the foreign keys as stored. From/To are only populated
// by the inbox queries (the read paths that need sender/recipient for
// display); everywhere else they stay nil and are omitted from JSON.
//
// Location is optional. A message without a location can never match a
// proximity query — the near filter skips rows with no point, same as a
// spatial index would.
type Message struct {
	ID       uuid.UUID `json:"id"`
	Date     time.Time `json:"date"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	FromID   uuid.UUID `json:"from"`
	ToID     uuid.UUID `json:"to"`
	Location *Point    `json:"location,omitempty"`

	From *User `json:"from_user,omitempty"`
	To   *User `json:"to_user,omitempty"`
}

// DefaultSubject is stored when a message is created without one.
const DefaultSubject = "No Subject"
