package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"caucus/contexts/election-core/ballot-service/domain/entities"
	domainerrors "caucus/contexts/election-core/ballot-service/domain/errors"
	"caucus/contexts/election-core/ballot-service/ports"

	"github.com/google/uuid"
)

// Store is the in-memory ballot adapter. It doubles as a poll directory
// seeded through SetPollFacts so the module can run without the poll store.
type Store struct {
	mu sync.RWMutex

	ballots     map[string]entities.Ballot
	polls       map[string]ports.PollFacts
	idempotency map[string]ports.IdempotencyRecord
	outbox      []ports.EventEnvelope
}

func NewStore() *Store {
	return &Store{
		ballots:     make(map[string]entities.Ballot),
		polls:       make(map[string]ports.PollFacts),
		idempotency: make(map[string]ports.IdempotencyRecord),
	}
}

func ballotKey(pollID string, voterID string) string {
	return strings.TrimSpace(pollID) + "/" + strings.TrimSpace(voterID)
}

func (s *Store) SetPollFacts(facts ports.PollFacts) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[strings.TrimSpace(facts.PollID)] = ports.PollFacts{
		PollID:    strings.TrimSpace(facts.PollID),
		ChannelID: strings.TrimSpace(facts.ChannelID),
		Open:      facts.Open,
		OptionIDs: append([]string(nil), facts.OptionIDs...),
	}
}

func (s *Store) GetPollFacts(_ context.Context, pollID string) (ports.PollFacts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	facts, ok := s.polls[strings.TrimSpace(pollID)]
	if !ok {
		return ports.PollFacts{}, domainerrors.ErrPollNotFound
	}
	return facts, nil
}

func (s *Store) SaveBallot(_ context.Context, ballot entities.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ballot.Rankings = append([]string(nil), ballot.Rankings...)
	s.ballots[ballotKey(ballot.PollID, ballot.VoterID)] = ballot
	return nil
}

func (s *Store) GetBallot(_ context.Context, pollID string, voterID string) (entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ballot, ok := s.ballots[ballotKey(pollID, voterID)]
	if !ok {
		return entities.Ballot{}, domainerrors.ErrBallotNotFound
	}
	ballot.Rankings = append([]string(nil), ballot.Rankings...)
	return ballot, nil
}

func (s *Store) ListSubmittedByPoll(_ context.Context, pollID string) ([]entities.Ballot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pollID = strings.TrimSpace(pollID)
	items := make([]entities.Ballot, 0)
	for _, ballot := range s.ballots {
		if ballot.PollID != pollID || !ballot.Submitted {
			continue
		}
		ballot.Rankings = append([]string(nil), ballot.Rankings...)
		items = append(items, ballot)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].VoterID < items[j].VoterID
	})
	return items, nil
}

// SubmittedRankings satisfies the poll module's ballot reader.
func (s *Store) SubmittedRankings(ctx context.Context, pollID string) (map[string][]string, error) {
	ballots, err := s.ListSubmittedByPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	rankings := make(map[string][]string, len(ballots))
	for _, ballot := range ballots {
		rankings[ballot.VoterID] = ballot.Rankings
	}
	return rankings, nil
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
		if existing.RequestHash != record.RequestHash || existing.BallotRef != record.BallotRef {
			return domainerrors.ErrIdempotencyConflict
		}
		return nil
	}
	s.idempotency[key] = ports.IdempotencyRecord{
		Key:         key,
		RequestHash: strings.TrimSpace(record.RequestHash),
		BallotRef:   strings.TrimSpace(record.BallotRef),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, envelope)
	return nil
}

// Outbox returns the appended envelopes, for test assertions.
func (s *Store) Outbox() []ports.EventEnvelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.EventEnvelope(nil), s.outbox...)
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
