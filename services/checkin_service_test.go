package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pulacatraca/config"
	"pulacatraca/internal/status"
	"pulacatraca/models"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTicketStore keeps tickets in memory keyed by code. MarkUsed is a
// real compare-and-set under a mutex so the concurrency test exercises
// the same single-winner behavior as the SQL conditional update.
type fakeTicketStore struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket

	findErr error
	markErr error
}

func newFakeTicketStore(tickets ...*models.Ticket) *fakeTicketStore {
	s := &fakeTicketStore{tickets: make(map[string]*models.Ticket)}
	for _, t := range tickets {
		s.tickets[t.Code] = t
	}
	return s
}

func (s *fakeTicketStore) FindByCode(ctx context.Context, code, organizerID string) (*models.Ticket, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[code]
	if !ok || t.OrganizerID != organizerID {
		return nil, status.ErrTicketNotFound
	}

	cp := *t
	return &cp, nil
}

func (s *fakeTicketStore) MarkUsed(ctx context.Context, ticketID string, usedAt time.Time) (int64, error) {
	if s.markErr != nil {
		return 0, s.markErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tickets {
		if t.ID == ticketID {
			if t.Status != models.TicketStatusActive {
				return 0, nil
			}
			t.Status = models.TicketStatusUsed
			t.UsedAt = &usedAt
			return 1, nil
		}
	}
	return 0, nil
}

func (s *fakeTicketStore) get(code string) *models.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.tickets[code]
	return &cp
}

type fakeProfileStore struct {
	names map[string]string
	err   error
}

func (s *fakeProfileStore) DisplayName(ctx context.Context, userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.names[userID], nil
}

type fakeCheckinLog struct {
	mu   sync.Mutex
	recs []*models.CheckInRecord
	err  error
}

func (l *fakeCheckinLog) Append(ctx context.Context, rec *models.CheckInRecord) error {
	if l.err != nil {
		return l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recs = append(l.recs, rec)
	return nil
}

func (l *fakeCheckinLog) records() []*models.CheckInRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*models.CheckInRecord{}, l.recs...)
}

type published struct {
	channel string
	message map[string]any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Publish(channel string, message map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{channel: channel, message: message})
}

func (p *fakePublisher) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published{}, p.msgs...)
}

func activeTicket() *models.Ticket {
	return &models.Ticket{
		ID:          "tkt_1",
		Code:        "ABCD1234",
		EventID:     "evt_1",
		UserID:      "usr_1",
		Type:        "VIP",
		Status:      models.TicketStatusActive,
		OrganizerID: "org_1",
		EventName:   "Festa Junina",
	}
}

func setupCheckinService(store *fakeTicketStore) (*CheckinService, *fakeCheckinLog, *fakePublisher) {
	checkinLog := &fakeCheckinLog{}
	pub := &fakePublisher{}
	profiles := &fakeProfileStore{names: map[string]string{"usr_1": "Maria Silva"}}
	cfg := &config.Config{StoreTimeout: 2 * time.Second}

	svc := NewCheckinService(store, profiles, checkinLog, pub, nil, nil, cfg)
	return svc, checkinLog, pub
}

func TestCheckinService_Validate_Success(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	svc, checkinLog, pub := setupCheckinService(store)

	result, err := svc.Validate(context.Background(), "ABCD1234", "org_1")

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "Maria Silva", result.ParticipantName)
	assert.Equal(t, "VIP", result.TicketType)
	assert.Equal(t, "Festa Junina", result.EventName)
	require.NotNil(t, result.UsedAt)
	require.NotNil(t, result.CheckIn)
	assert.Equal(t, "tkt_1", result.CheckIn.TicketID)

	// Ticket flipped to used in the store.
	assert.Equal(t, models.TicketStatusUsed, store.get("ABCD1234").Status)

	// One record appended, one realtime publish on the organizer channel.
	recs := checkinLog.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "evt_1", recs[0].EventID)
	assert.Equal(t, "Maria Silva", recs[0].ParticipantName)

	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "organizer-org_1", msgs[0].channel)
	assert.Equal(t, "checkin", msgs[0].message["type"])
}

func TestCheckinService_Validate_SecondScanIsAlreadyUsed(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	svc, checkinLog, _ := setupCheckinService(store)
	ctx := context.Background()

	first, err := svc.Validate(ctx, "ABCD1234", "org_1")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeSuccess, first.Outcome)

	second, err := svc.Validate(ctx, "ABCD1234", "org_1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyUsed, second.Outcome)
	require.NotNil(t, second.UsedAt)

	// Only the first scan produced a record.
	assert.Len(t, checkinLog.records(), 1)
	assert.Equal(t, models.TicketStatusUsed, store.get("ABCD1234").Status)
}

func TestCheckinService_Validate_UnknownCode(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	svc, checkinLog, pub := setupCheckinService(store)

	result, err := svc.Validate(context.Background(), "NOPE0000", "org_1")

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNotFound, result.Outcome)
	assert.Empty(t, checkinLog.records())
	assert.Empty(t, pub.messages())
}

func TestCheckinService_Validate_ForeignOrganizerReadsAsNotFound(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	svc, _, _ := setupCheckinService(store)

	result, err := svc.Validate(context.Background(), "ABCD1234", "org_other")

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNotFound, result.Outcome)

	// The foreign scan must not touch the ticket.
	assert.Equal(t, models.TicketStatusActive, store.get("ABCD1234").Status)
}

func TestCheckinService_Validate_InactiveStatuses(t *testing.T) {
	for _, st := range []string{
		models.TicketStatusPending,
		models.TicketStatusCancelled,
		models.TicketStatusExpired,
	} {
		t.Run(st, func(t *testing.T) {
			ticket := activeTicket()
			ticket.Status = st
			store := newFakeTicketStore(ticket)
			svc, checkinLog, _ := setupCheckinService(store)

			result, err := svc.Validate(context.Background(), "ABCD1234", "org_1")

			require.NoError(t, err)
			assert.Equal(t, models.OutcomeInactive, result.Outcome)
			assert.Contains(t, result.Message, st)
			assert.Equal(t, st, store.get("ABCD1234").Status)
			assert.Empty(t, checkinLog.records())
		})
	}
}

func TestCheckinService_Validate_EmptyInput(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	svc, _, _ := setupCheckinService(store)
	ctx := context.Background()

	_, err := svc.Validate(ctx, "", "org_1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Validate(ctx, "   ", "org_1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Validate(ctx, "ABCD1234", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCheckinService_Validate_TrimsScannedCode(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	svc, _, _ := setupCheckinService(store)

	result, err := svc.Validate(context.Background(), "  ABCD1234\n", "org_1")

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
}

func TestCheckinService_Validate_ConcurrentScansSingleWinner(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	svc, checkinLog, _ := setupCheckinService(store)

	const devices = 16

	var wg sync.WaitGroup
	var start sync.WaitGroup
	start.Add(1)

	outcomes := make(chan models.ValidationOutcome, devices)

	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()

			result, err := svc.Validate(context.Background(), "ABCD1234", "org_1")
			if err != nil {
				t.Errorf("unexpected validate error: %v", err)
				return
			}
			outcomes <- result.Outcome
		}()
	}

	start.Done()
	wg.Wait()
	close(outcomes)

	var successes, alreadyUsed int
	for outcome := range outcomes {
		switch outcome {
		case models.OutcomeSuccess:
			successes++
		case models.OutcomeAlreadyUsed:
			alreadyUsed++
		default:
			t.Errorf("unexpected outcome %q", outcome)
		}
	}

	assert.Equal(t, 1, successes, "exactly one device may win the check-in")
	assert.Equal(t, devices-1, alreadyUsed)
	assert.Len(t, checkinLog.records(), 1)
}

func TestCheckinService_Validate_RaceLoserGetsAlreadyUsed(t *testing.T) {
	// The read sees an active ticket, but another device flips it before
	// the conditional update lands.
	ticket := activeTicket()
	store := newFakeTicketStore(ticket)
	svc, checkinLog, _ := setupCheckinService(store)

	store.mu.Lock()
	store.tickets["ABCD1234"].Status = models.TicketStatusActive
	store.mu.Unlock()

	// Swap in a store wrapper whose MarkUsed always reports zero rows.
	svc.tickets = &raceLosingStore{inner: store}

	result, err := svc.Validate(context.Background(), "ABCD1234", "org_1")

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyUsed, result.Outcome)
	assert.Empty(t, checkinLog.records())
}

type raceLosingStore struct {
	inner *fakeTicketStore
}

func (s *raceLosingStore) FindByCode(ctx context.Context, code, organizerID string) (*models.Ticket, error) {
	return s.inner.FindByCode(ctx, code, organizerID)
}

func (s *raceLosingStore) MarkUsed(ctx context.Context, ticketID string, usedAt time.Time) (int64, error) {
	return 0, nil
}

func TestCheckinService_Validate_StoreErrorIsRetriable(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	store.findErr = errors.New("connection reset")
	svc, _, _ := setupCheckinService(store)

	result, err := svc.Validate(context.Background(), "ABCD1234", "org_1")

	assert.Error(t, err)
	assert.Nil(t, result)

	// Once the store recovers, the same code still checks in.
	store.findErr = nil
	result, err = svc.Validate(context.Background(), "ABCD1234", "org_1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
}

func TestCheckinService_Validate_MarkUsedError(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	store.markErr = errors.New("write failed")
	svc, checkinLog, _ := setupCheckinService(store)

	result, err := svc.Validate(context.Background(), "ABCD1234", "org_1")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, checkinLog.records())
	assert.Equal(t, models.TicketStatusActive, store.get("ABCD1234").Status)
}

func TestCheckinService_Validate_NameFallback(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	svc, _, _ := setupCheckinService(store)
	svc.profiles = &fakeProfileStore{err: errors.New("profiles unavailable")}

	result, err := svc.Validate(context.Background(), "ABCD1234", "org_1")

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.Equal(t, "Participant", result.ParticipantName)
}

func TestCheckinService_Validate_LogFailureDoesNotUndoSuccess(t *testing.T) {
	store := newFakeTicketStore(activeTicket())
	svc, checkinLog, pub := setupCheckinService(store)
	checkinLog.err = errors.New("checkins collection unavailable")

	result, err := svc.Validate(context.Background(), "ABCD1234", "org_1")

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.Equal(t, models.TicketStatusUsed, store.get("ABCD1234").Status)
	assert.Len(t, pub.messages(), 1)
}

func TestCheckinService_Validate_BumpsRedisCounter(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	store := newFakeTicketStore(activeTicket())
	svc, _, _ := setupCheckinService(store)
	svc.Redis = db

	mock.ExpectIncr("checkin:count:evt_1").SetVal(1)

	result, err := svc.Validate(context.Background(), "ABCD1234", "org_1")

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckinService_OwnsEvent(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	svc := NewCheckinService(nil, nil, nil, nil, nil, db, &config.Config{})

	mock.ExpectSIsMember("organizer:events:org_1", "evt_1").SetVal(true)
	owned, err := svc.OwnsEvent(context.Background(), "org_1", "evt_1")
	require.NoError(t, err)
	assert.True(t, owned)

	mock.ExpectSIsMember("organizer:events:org_1", "evt_foreign").SetVal(false)
	owned, err = svc.OwnsEvent(context.Background(), "org_1", "evt_foreign")
	require.NoError(t, err)
	assert.False(t, owned)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckinService_CheckinCount(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	svc := NewCheckinService(nil, nil, nil, nil, nil, db, &config.Config{})

	mock.ExpectGet("checkin:count:evt_1").SetVal("42")
	count, err := svc.CheckinCount(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)

	mock.ExpectGet("checkin:count:evt_fresh").RedisNil()
	count, err = svc.CheckinCount(context.Background(), "evt_fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	assert.NoError(t, mock.ExpectationsWereMet())
}
