// Package tally implements the instant-runoff tally used to decide a poll.
//
// The engine is a pure function of a ballot set: it performs no I/O, never
// mutates its input, and touches no shared state apart from the supplied
// randomness source. Randomness is used in exactly two places: shuffling
// each round snapshot so ballot order cannot be correlated with voters, and
// breaking the tie when every ballot exhausts before a majority appears.
package tally

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
)

// maxRounds bounds the elimination loop. The candidate universe strictly
// shrinks every round, so reaching the ceiling means the elimination logic
// is broken, not that the election is unusual.
const maxRounds = 1000

// ErrTallyStalled reports that the elimination loop exceeded its round
// ceiling. The tally result is undefined and must not be presented as an
// election outcome.
var ErrTallyStalled = errors.New("tally exceeded elimination round ceiling")

// Ballot is one voter's ranking of option IDs, most preferred first.
// Entries are unique; a ballot may be empty or become empty ("exhausted")
// as options are eliminated.
type Ballot []string

// BallotSet maps an opaque voter ID to that voter's ballot. The engine
// treats the set as unordered.
type BallotSet map[string]Ballot

// RoundSnapshot captures every ballot's remaining entries immediately after
// one elimination round, in shuffled order.
type RoundSnapshot []Ballot

// Result is the tally outcome. Winner is empty only when no ballot carried
// any ranking at all. Rounds holds one snapshot per elimination performed;
// it is empty when the very first count produced a majority.
type Result struct {
	Winner string
	Rounds []RoundSnapshot
}

// Rand is the injectable randomness source. *math/rand.Rand satisfies it.
// A Rand shared across concurrent tallies must itself be safe for
// concurrent use; see Locked.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// lockedRand serialises access to an underlying *rand.Rand so one source
// can serve concurrent tally invocations.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rng.Shuffle(n, swap)
}

// Locked wraps seed-derived randomness in a mutex so the returned source is
// safe to share between tallies running on different goroutines.
func Locked(seed int64) Rand {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))}
}

// Default returns the process-wide locked source used when no Rand is
// supplied.
func Default() Rand {
	return defaultRand
}

// Tally determines the instant-runoff winner of the ballot set.
//
// Each round counts every non-exhausted ballot's first remaining choice.
// An option holding a strict majority of the votes cast that round wins
// immediately. Otherwise every option tied at the minimum count is
// eliminated at once, a shuffled snapshot of the surviving rankings is
// recorded, and counting repeats. If all ballots exhaust first, the winner
// is drawn uniformly from the options that were someone's first choice on
// the original, pre-elimination ballots.
//
// A nil rng selects a process-wide locked source.
func Tally(ballots BallotSet, rng Rand) (Result, error) {
	if rng == nil {
		rng = defaultRand
	}
	if len(ballots) == 0 {
		return Result{}, nil
	}

	working := make([]Ballot, 0, len(ballots))
	for _, ballot := range ballots {
		working = append(working, append(Ballot(nil), ballot...))
	}
	// Canonical order before any shuffling so the result does not depend on
	// map iteration.
	sortBallots(working)

	var rounds []RoundSnapshot
	for {
		universe := make(map[string]int)
		for _, ballot := range working {
			for _, option := range ballot {
				universe[option] = 0
			}
		}
		totalVotes := 0
		for _, ballot := range working {
			if len(ballot) == 0 {
				continue
			}
			universe[ballot[0]]++
			totalVotes++
		}

		if totalVotes == 0 {
			return Result{
				Winner: exhaustionWinner(ballots, rng),
				Rounds: rounds,
			}, nil
		}

		for option, count := range universe {
			// Strict majority, exact comparison: 3 of 5 must pass as 3 > 2.5.
			if 2*count > totalVotes {
				return Result{Winner: option, Rounds: rounds}, nil
			}
		}

		minCount := -1
		for _, count := range universe {
			if minCount < 0 || count < minCount {
				minCount = count
			}
		}
		eliminated := make(map[string]bool)
		for option, count := range universe {
			if count == minCount {
				eliminated[option] = true
			}
		}

		for i, ballot := range working {
			remaining := ballot[:0]
			for _, option := range ballot {
				if !eliminated[option] {
					remaining = append(remaining, option)
				}
			}
			working[i] = remaining
		}

		snapshot := make(RoundSnapshot, len(working))
		for i, ballot := range working {
			snapshot[i] = append(Ballot(nil), ballot...)
		}
		rng.Shuffle(len(snapshot), func(i, j int) {
			snapshot[i], snapshot[j] = snapshot[j], snapshot[i]
		})
		rounds = append(rounds, snapshot)

		if len(rounds) > maxRounds {
			return Result{}, ErrTallyStalled
		}
	}
}

// exhaustionWinner picks uniformly among the options that led at least one
// original ballot. Sorting first keeps the draw deterministic under a
// seeded source.
func exhaustionWinner(ballots BallotSet, rng Rand) string {
	seen := make(map[string]bool)
	for _, ballot := range ballots {
		if len(ballot) > 0 {
			seen[ballot[0]] = true
		}
	}
	if len(seen) == 0 {
		return ""
	}
	pool := make([]string, 0, len(seen))
	for option := range seen {
		pool = append(pool, option)
	}
	sort.Strings(pool)
	return pool[rng.Intn(len(pool))]
}

func sortBallots(items []Ballot) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}

var defaultRand = Locked(rand.Int63())
