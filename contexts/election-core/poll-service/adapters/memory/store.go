package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"caucus/contexts/election-core/poll-service/domain/entities"
	domainerrors "caucus/contexts/election-core/poll-service/domain/errors"
	"caucus/contexts/election-core/poll-service/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

type dedupRecord struct {
	payloadHash string
	expiresAt   time.Time
}

// Store is the in-memory poll adapter used by unit tests and the in-process
// wiring. It also carries a ballot projection so a standalone poll module can
// answer SubmittedRankings without the ballot module.
type Store struct {
	mu sync.RWMutex

	polls       map[string]entities.Poll
	idempotency map[string]ports.IdempotencyRecord
	outbox      map[string]outboxRecord
	eventDedup  map[string]dedupRecord

	// pollID -> voterID -> rankings
	rankings map[string]map[string][]string
}

func NewStore(seed []entities.Poll) *Store {
	polls := make(map[string]entities.Poll, len(seed))
	for _, poll := range seed {
		polls[poll.PollID] = poll
	}
	return &Store{
		polls:       polls,
		idempotency: make(map[string]ports.IdempotencyRecord),
		outbox:      make(map[string]outboxRecord),
		eventDedup:  make(map[string]dedupRecord),
		rankings:    make(map[string]map[string][]string),
	}
}

// SetSubmittedBallot records one voter's submitted rankings in the local
// ballot projection.
func (s *Store) SetSubmittedBallot(pollID string, voterID string, rankings []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pollID = strings.TrimSpace(pollID)
	if s.rankings[pollID] == nil {
		s.rankings[pollID] = make(map[string][]string)
	}
	s.rankings[pollID][strings.TrimSpace(voterID)] = append([]string(nil), rankings...)
}

func (s *Store) SubmittedRankings(_ context.Context, pollID string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.rankings[strings.TrimSpace(pollID)]
	out := make(map[string][]string, len(stored))
	for voterID, ballot := range stored {
		out[voterID] = append([]string(nil), ballot...)
	}
	return out, nil
}

func (s *Store) SavePoll(_ context.Context, poll entities.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[strings.TrimSpace(poll.PollID)] = poll
	return nil
}

func (s *Store) GetPoll(_ context.Context, pollID string) (entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	poll, ok := s.polls[strings.TrimSpace(pollID)]
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return poll, nil
}

func (s *Store) GetOpenPollByChannel(_ context.Context, channelID string) (entities.Poll, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channelID = strings.TrimSpace(channelID)
	for _, poll := range s.polls {
		if poll.ChannelID == channelID && poll.IsOpen() {
			return poll, true, nil
		}
	}
	return entities.Poll{}, false, nil
}

func (s *Store) ListOpenPolls(_ context.Context) ([]entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]entities.Poll, 0)
	for _, poll := range s.polls {
		if poll.IsOpen() {
			items = append(items, poll)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) Get(_ context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = strings.TrimSpace(key)
	record, exists := s.idempotency[key]
	if !exists {
		return ports.IdempotencyRecord{}, false, nil
	}
	if !record.ExpiresAt.After(now.UTC()) {
		delete(s.idempotency, key)
		return ports.IdempotencyRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) Put(_ context.Context, record ports.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.Key)
	existing, exists := s.idempotency[key]
	if exists {
		if existing.RequestHash != record.RequestHash || existing.PollID != record.PollID {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		PollID:      strings.TrimSpace(record.PollID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) ReserveEvent(
	_ context.Context,
	eventID string,
	payloadHash string,
	expiresAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(eventID)
	existing, ok := s.eventDedup[key]
	if ok {
		if !existing.expiresAt.IsZero() && time.Now().UTC().After(existing.expiresAt.UTC()) {
			delete(s.eventDedup, key)
		} else {
			if existing.payloadHash != strings.TrimSpace(payloadHash) {
				return false, domainerrors.ErrConflict
			}
			return true, nil
		}
	}

	s.eventDedup[key] = dedupRecord{
		payloadHash: strings.TrimSpace(payloadHash),
		expiresAt:   expiresAt.UTC(),
	}
	return false, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
