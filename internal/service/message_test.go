package service

import (
	"context"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"geonote/internal/models"
	"geonote/internal/repository"
)

// fakeMessageRepo is an in-memory MessageRepository with the same query
// contract as the real store: recipient filter, great-circle radius cut,
// nearest-first order, sender/recipient population.
type fakeMessageRepo struct {
	byID  map[uuid.UUID]*models.Message
	order []uuid.UUID
	users map[uuid.UUID]*models.User
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		byID:  make(map[uuid.UUID]*models.Message),
		users: make(map[uuid.UUID]*models.User),
	}
}

func (f *fakeMessageRepo) Create(_ context.Context, m repository.NewMessage) (*models.Message, error) {
	msg := &models.Message{
		ID:       uuid.New(),
		Date:     time.Now(),
		Subject:  m.Subject,
		Body:     m.Body,
		FromID:   m.From,
		ToID:     m.To,
		Location: m.Location,
	}
	if m.Date != nil {
		msg.Date = *m.Date
	}
	f.byID[msg.ID] = msg
	f.order = append(f.order, msg.ID)
	out := *msg
	return &out, nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	msg, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *msg
	return &out, nil
}

func (f *fakeMessageRepo) Update(_ context.Context, id uuid.UUID, patch repository.MessagePatch) (*models.Message, error) {
	msg, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Subject != nil {
		msg.Subject = *patch.Subject
	}
	if patch.Body != nil {
		msg.Body = *patch.Body
	}
	if patch.Date != nil {
		msg.Date = *patch.Date
	}
	if patch.From != nil {
		msg.FromID = *patch.From
	}
	if patch.To != nil {
		msg.ToID = *patch.To
	}
	if patch.Location != nil {
		msg.Location = patch.Location
	}
	out := *msg
	return &out, nil
}

func (f *fakeMessageRepo) Delete(_ context.Context, id uuid.UUID) (*models.Message, error) {
	msg, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.byID, id)
	for i, other := range f.order {
		if other == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return msg, nil
}

func (f *fakeMessageRepo) DeleteAll(context.Context) (int64, error) {
	n := int64(len(f.byID))
	f.byID = make(map[uuid.UUID]*models.Message)
	f.order = nil
	return n, nil
}

func (f *fakeMessageRepo) ListAll(context.Context) ([]models.Message, error) {
	out := make([]models.Message, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.byID[id])
	}
	return out, nil
}

func (f *fakeMessageRepo) Inbox(_ context.Context, q repository.InboxQuery) ([]models.Message, error) {
	type scored struct {
		msg  models.Message
		dist float64
	}
	matches := make([]scored, 0)
	for _, id := range f.order {
		msg := *f.byID[id]
		if msg.ToID != q.Recipient {
			continue
		}
		var dist float64
		if q.Near != nil {
			if msg.Location == nil {
				continue
			}
			dist = haversineMeters(q.Near.Center, *msg.Location)
			if dist > q.Near.MaxDistanceMeters {
				continue
			}
		}
		msg.From = f.users[msg.FromID]
		msg.To = f.users[msg.ToID]
		matches = append(matches, scored{msg: msg, dist: dist})
	}
	if q.Near != nil {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].dist < matches[j].dist })
	}
	out := make([]models.Message, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.msg)
	}
	return out, nil
}

func haversineMeters(a, b models.Point) float64 {
	const earthRadius = 6371000.0
	rad := math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * rad
	dLon := (b.Longitude - a.Longitude) * rad
	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Latitude*rad)*math.Cos(b.Latitude*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(s))
}

type fakeCache struct {
	data        map[uuid.UUID][]models.Message
	hits        int
	sets        int
	invalidated []uuid.UUID
	flushed     bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[uuid.UUID][]models.Message)}
}

func (f *fakeCache) Get(_ context.Context, recipient uuid.UUID) ([]models.Message, bool) {
	msgs, ok := f.data[recipient]
	if ok {
		f.hits++
	}
	return msgs, ok
}

func (f *fakeCache) Set(_ context.Context, recipient uuid.UUID, messages []models.Message) {
	f.sets++
	f.data[recipient] = messages
}

func (f *fakeCache) Invalidate(_ context.Context, recipients ...uuid.UUID) {
	f.invalidated = append(f.invalidated, recipients...)
	for _, r := range recipients {
		delete(f.data, r)
	}
}

func (f *fakeCache) InvalidateAll(context.Context) {
	f.flushed = true
	f.data = make(map[uuid.UUID][]models.Message)
}

func newTestService(t *testing.T) (*MessageService, *fakeMessageRepo, *fakeCache) {
	t.Helper()
	repo := newFakeMessageRepo()
	c := newFakeCache()
	return NewMessageService(repo, c, 70, zap.NewNop()), repo, c
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)

	before := time.Now()
	msg, err := svc.Create(context.Background(), repository.NewMessage{
		Body: "hi",
		From: uuid.New(),
		To:   uuid.New(),
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Equal(t, models.DefaultSubject, msg.Subject)
	assert.False(t, msg.Date.Before(before))
	assert.False(t, msg.Date.After(time.Now()))
	assert.Nil(t, msg.Location)
}

func TestCreateKeepsSuppliedFields(t *testing.T) {
	svc, _, _ := newTestService(t)

	date := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	loc := &models.Point{Longitude: -73.935, Latitude: 40.823}
	msg, err := svc.Create(context.Background(), repository.NewMessage{
		Subject:  "meet me",
		Body:     "by the river",
		From:     uuid.New(),
		To:       uuid.New(),
		Date:     &date,
		Location: loc,
	})
	require.NoError(t, err)

	assert.Equal(t, "meet me", msg.Subject)
	assert.Equal(t, date, msg.Date)
	assert.Equal(t, loc, msg.Location)
}

func TestCreateRequiredFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	from, to := uuid.New(), uuid.New()

	cases := []struct {
		name  string
		input repository.NewMessage
		field string
	}{
		{"missing body", repository.NewMessage{From: from, To: to}, "body"},
		{"missing from", repository.NewMessage{Body: "hi", To: to}, "from"},
		{"missing to", repository.NewMessage{Body: "hi", From: from}, "to"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.input)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCreateRejectsOutOfRangeLocation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), repository.NewMessage{
		Body:     "hi",
		From:     uuid.New(),
		To:       uuid.New(),
		Location: &models.Point{Longitude: 400, Latitude: 0},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "location", verr.Field)
}

func TestFindNearbyFiltersAndOrders(t *testing.T) {
	svc, _, _ := newTestService(t)
	recipient := uuid.New()
	sender := uuid.New()

	// ~55 m north of the origin: inside the 70 m radius.
	near := models.Point{Longitude: 0, Latitude: 0.0005}
	far := models.Point{Longitude: 10, Latitude: 10}

	mkMsg := func(body string, p models.Point) {
		_, err := svc.Create(context.Background(), repository.NewMessage{
			Body: body, From: sender, To: recipient, Location: &models.Point{Longitude: p.Longitude, Latitude: p.Latitude},
		})
		require.NoError(t, err)
	}
	// Inserted farthest-first to prove ordering comes from distance,
	// not insertion.
	mkMsg("far away", far)
	mkMsg("55m away", near)
	mkMsg("right here", models.Origin)

	got, err := svc.FindNearby(context.Background(), recipient, &models.Point{})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "right here", got[0].Body)
	assert.Equal(t, "55m away", got[1].Body)
}

func TestFindNearbyDefaultsToOrigin(t *testing.T) {
	svc, _, _ := newTestService(t)
	recipient := uuid.New()

	_, err := svc.Create(context.Background(), repository.NewMessage{
		Body: "at the origin", From: uuid.New(), To: recipient,
		Location: &models.Point{},
	})
	require.NoError(t, err)

	got, err := svc.FindNearby(context.Background(), recipient, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "at the origin", got[0].Body)
}

func TestFindNearbyIsolatesRecipients(t *testing.T) {
	svc, _, _ := newTestService(t)
	alice, bob, sender := uuid.New(), uuid.New(), uuid.New()
	loc := &models.Point{Longitude: -73.935, Latitude: 40.823}

	_, err := svc.Create(context.Background(), repository.NewMessage{Body: "for alice", From: sender, To: alice, Location: loc})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), repository.NewMessage{Body: "for bob", From: sender, To: bob, Location: loc})
	require.NoError(t, err)

	got, err := svc.FindNearby(context.Background(), alice, loc)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "for alice", got[0].Body)
}

func TestFindNearbyEmptyIsNotAnError(t *testing.T) {
	svc, _, _ := newTestService(t)

	got, err := svc.FindNearby(context.Background(), uuid.New(), &models.Point{Longitude: 5, Latitude: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindNearbyRejectsNonFinitePoint(t *testing.T) {
	// "NaN" and "Inf" parse as valid float64 query parameters, so the
	// service is the last line of defense before the spatial query.
	svc, _, _ := newTestService(t)

	for _, p := range []models.Point{
		{Longitude: math.NaN(), Latitude: 0},
		{Longitude: 0, Latitude: math.Inf(1)},
	} {
		_, err := svc.FindNearby(context.Background(), uuid.New(), &p)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr, "point %+v", p)
		assert.Equal(t, "point", vErr.Field)
	}
}

func TestFindNearbyPopulatesUsers(t *testing.T) {
	repo := newFakeMessageRepo()
	svc := NewMessageService(repo, newFakeCache(), 70, zap.NewNop())

	sender := &models.User{ID: uuid.New(), Email: "a@example.com", FirstName: "A"}
	recipient := &models.User{ID: uuid.New(), Email: "b@example.com", FirstName: "B"}
	repo.users[sender.ID] = sender
	repo.users[recipient.ID] = recipient

	loc := &models.Point{Longitude: -73.935, Latitude: 40.823}
	_, err := svc.Create(context.Background(), repository.NewMessage{Body: "hi", From: sender.ID, To: recipient.ID, Location: loc})
	require.NoError(t, err)

	got, err := svc.FindNearby(context.Background(), recipient.ID, loc)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].From)
	require.NotNil(t, got[0].To)
	assert.Equal(t, "a@example.com", got[0].From.Email)
	assert.Equal(t, "b@example.com", got[0].To.Email)
}

func TestInboxAllReadsThroughCache(t *testing.T) {
	svc, _, c := newTestService(t)
	recipient := uuid.New()

	_, err := svc.Create(context.Background(), repository.NewMessage{Body: "one", From: uuid.New(), To: recipient})
	require.NoError(t, err)

	first, err := svc.FindAllForRecipient(context.Background(), recipient)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, c.sets)

	second, err := svc.FindAllForRecipient(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.hits)
}

func TestCreateInvalidatesRecipientInbox(t *testing.T) {
	svc, _, c := newTestService(t)
	recipient := uuid.New()

	_, err := svc.Create(context.Background(), repository.NewMessage{Body: "one", From: uuid.New(), To: recipient})
	require.NoError(t, err)

	_, err = svc.FindAllForRecipient(context.Background(), recipient)
	require.NoError(t, err)

	// A new message must evict the cached inbox so the next read sees it.
	_, err = svc.Create(context.Background(), repository.NewMessage{Body: "two", From: uuid.New(), To: recipient})
	require.NoError(t, err)
	assert.Contains(t, c.invalidated, recipient)

	got, err := svc.FindAllForRecipient(context.Background(), recipient)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestInboxAllIgnoresDistance(t *testing.T) {
	svc, _, _ := newTestService(t)
	recipient := uuid.New()

	_, err := svc.Create(context.Background(), repository.NewMessage{
		Body: "far", From: uuid.New(), To: recipient,
		Location: &models.Point{Longitude: 100, Latitude: 40},
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), repository.NewMessage{Body: "nowhere", From: uuid.New(), To: recipient})
	require.NoError(t, err)

	got, err := svc.FindAllForRecipient(context.Background(), recipient)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRoundTripPreservesUserFields(t *testing.T) {
	svc, _, _ := newTestService(t)

	loc := &models.Point{Longitude: 1.5, Latitude: -2.5}
	created, err := svc.Create(context.Background(), repository.NewMessage{
		Subject: "s", Body: "b", From: uuid.New(), To: uuid.New(), Location: loc,
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestRemoveReturnsRemovedRowAndInvalidates(t *testing.T) {
	svc, _, c := newTestService(t)
	recipient := uuid.New()

	created, err := svc.Create(context.Background(), repository.NewMessage{Body: "bye", From: uuid.New(), To: recipient})
	require.NoError(t, err)

	removed, err := svc.Remove(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, removed.ID)
	assert.Contains(t, c.invalidated, recipient)

	_, err = svc.Get(context.Background(), created.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRemoveAllFlushesCache(t *testing.T) {
	svc, _, c := newTestService(t)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), repository.NewMessage{Body: "x", From: uuid.New(), To: uuid.New()})
		require.NoError(t, err)
	}

	n, err := svc.RemoveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.True(t, c.flushed)
}

func TestUpdateReaddressInvalidatesBothInboxes(t *testing.T) {
	svc, _, c := newTestService(t)
	oldTo, newTo := uuid.New(), uuid.New()

	created, err := svc.Create(context.Background(), repository.NewMessage{Body: "moving", From: uuid.New(), To: oldTo})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, repository.MessagePatch{To: &newTo})
	require.NoError(t, err)
	assert.Equal(t, newTo, updated.ToID)
	assert.Contains(t, c.invalidated, oldTo)
	assert.Contains(t, c.invalidated, newTo)
}

func TestUpdateMissingMessage(t *testing.T) {
	svc, _, _ := newTestService(t)

	subject := "nope"
	_, err := svc.Update(context.Background(), uuid.New(), repository.MessagePatch{Subject: &subject})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
