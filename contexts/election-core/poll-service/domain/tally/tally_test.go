package tally

import (
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"testing"
)

func seeded(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

// sameRound compares two round snapshots as multisets of rankings, ignoring
// the shuffled ballot order.
func sameRound(t *testing.T, got RoundSnapshot, want []Ballot) {
	t.Helper()
	gotKeys := make([]string, 0, len(got))
	for _, ballot := range got {
		gotKeys = append(gotKeys, strings.Join(ballot, ","))
	}
	wantKeys := make([]string, 0, len(want))
	for _, ballot := range want {
		wantKeys = append(wantKeys, strings.Join(ballot, ","))
	}
	sort.Strings(gotKeys)
	sort.Strings(wantKeys)
	if !reflect.DeepEqual(gotKeys, wantKeys) {
		t.Fatalf("round mismatch: got %v want %v", gotKeys, wantKeys)
	}
}

func TestTallyEmptyBallotSet(t *testing.T) {
	result, err := Tally(BallotSet{}, seeded(1))
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.Winner != "" {
		t.Fatalf("expected no winner, got %q", result.Winner)
	}
	if len(result.Rounds) != 0 {
		t.Fatalf("expected no rounds, got %d", len(result.Rounds))
	}
}

func TestTallyFirstRoundMajority(t *testing.T) {
	ballots := BallotSet{
		"voter1": {"A", "B", "C"},
		"voter2": {"A", "C", "B"},
		"voter3": {"A", "B", "C"},
		"voter4": {"B", "A", "C"},
		"voter5": {"C", "B", "A"},
	}
	result, err := Tally(ballots, seeded(1))
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.Winner != "A" {
		t.Fatalf("expected winner A, got %q", result.Winner)
	}
	if len(result.Rounds) != 0 {
		t.Fatalf("expected zero rounds for a first-count majority, got %d", len(result.Rounds))
	}
}

func TestTallyMajorityAfterOneElimination(t *testing.T) {
	ballots := BallotSet{
		"voter1": {"A", "B", "C"},
		"voter2": {"B", "A", "C"},
		"voter3": {"B", "C", "A"},
		"voter4": {"C", "A", "B"},
		"voter5": {"C", "B", "A"},
	}
	result, err := Tally(ballots, seeded(7))
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.Winner != "B" {
		t.Fatalf("expected winner B, got %q", result.Winner)
	}
	if len(result.Rounds) != 1 {
		t.Fatalf("expected one round, got %d", len(result.Rounds))
	}
	sameRound(t, result.Rounds[0], []Ballot{
		{"B", "C"},
		{"B", "C"},
		{"B", "C"},
		{"C", "B"},
		{"C", "B"},
	})
}

func TestTallyMultipleEliminationRounds(t *testing.T) {
	ballots := BallotSet{
		"voter1": {"A", "B", "C", "D"},
		"voter2": {"B", "A", "D", "C"},
		"voter3": {"D", "C", "A", "B"},
		"voter4": {"D", "C", "B", "A"},
		"voter5": {"A", "C", "B", "D"},
	}
	result, err := Tally(ballots, seeded(3))
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.Winner != "A" {
		t.Fatalf("expected winner A, got %q", result.Winner)
	}
	if len(result.Rounds) != 2 {
		t.Fatalf("expected two rounds, got %d", len(result.Rounds))
	}
	sameRound(t, result.Rounds[0], []Ballot{
		{"A", "B", "D"},
		{"B", "A", "D"},
		{"D", "A", "B"},
		{"D", "B", "A"},
		{"A", "B", "D"},
	})
	sameRound(t, result.Rounds[1], []Ballot{
		{"A", "D"},
		{"A", "D"},
		{"D", "A"},
		{"D", "A"},
		{"A", "D"},
	})
}

// IRV can bypass the Condorcet winner: B beats both A and C head to head
// but holds no first-choice votes, so C takes an immediate majority.
func TestTallyCondorcetWinnerCanLose(t *testing.T) {
	ballots := BallotSet{
		"voter1": {"A", "B", "C"},
		"voter2": {"A", "B", "C"},
		"voter3": {"C", "B", "A"},
		"voter4": {"C", "B", "A"},
		"voter5": {"C", "B", "A"},
	}
	result, err := Tally(ballots, seeded(5))
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.Winner != "C" {
		t.Fatalf("expected winner C, got %q", result.Winner)
	}
	if len(result.Rounds) != 0 {
		t.Fatalf("expected zero rounds, got %d", len(result.Rounds))
	}
}

// Simplified 2009 Burlington, VT mayoral race: the Condorcet winner
// (Montroll) is eliminated in round one and the plurality runner-up (Kiss)
// wins the runoff.
func TestTallyBurlington2009Scenario(t *testing.T) {
	ballots := BallotSet{
		"voter1": {"Wright", "Montroll", "Kiss"},
		"voter2": {"Wright", "Montroll", "Kiss"},
		"voter3": {"Wright", "Montroll", "Kiss"},
		"voter4": {"Wright", "Kiss", "Montroll"},
		"voter5": {"Montroll", "Kiss", "Wright"},
		"voter6": {"Montroll", "Kiss", "Wright"},
		"voter7": {"Kiss", "Montroll", "Wright"},
		"voter8": {"Kiss", "Montroll", "Wright"},
		"voter9": {"Kiss", "Montroll", "Wright"},
	}
	result, err := Tally(ballots, seeded(11))
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.Winner != "Kiss" {
		t.Fatalf("expected winner Kiss, got %q", result.Winner)
	}
	if len(result.Rounds) != 1 {
		t.Fatalf("expected one round, got %d", len(result.Rounds))
	}
	sameRound(t, result.Rounds[0], []Ballot{
		{"Wright", "Kiss"},
		{"Wright", "Kiss"},
		{"Wright", "Kiss"},
		{"Wright", "Kiss"},
		{"Kiss", "Wright"},
		{"Kiss", "Wright"},
		{"Kiss", "Wright"},
		{"Kiss", "Wright"},
		{"Kiss", "Wright"},
	})
}

func TestTallyAllBallotsExhaustSimultaneously(t *testing.T) {
	ballots := BallotSet{
		"voter1": {"A", "B"},
		"voter2": {"B", "A"},
		"voter3": {"C", "A"},
	}
	for seed := int64(0); seed < 25; seed++ {
		result, err := Tally(ballots, seeded(seed))
		if err != nil {
			t.Fatalf("tally failed: %v", err)
		}
		if len(result.Rounds) != 1 {
			t.Fatalf("expected one round, got %d", len(result.Rounds))
		}
		sameRound(t, result.Rounds[0], []Ballot{{}, {}, {}})
		switch result.Winner {
		case "A", "B", "C":
		default:
			t.Fatalf("winner %q is not an original first choice", result.Winner)
		}
	}
}

// Empty original ballots contribute nothing to the exhaustion pool; the
// fallback winner must still be someone's original first choice.
func TestTallyExhaustionIgnoresEmptyOriginalBallots(t *testing.T) {
	ballots := BallotSet{
		"voter1": {"A", "B"},
		"voter2": {"B", "A"},
		"voter3": {},
	}
	for seed := int64(0); seed < 25; seed++ {
		result, err := Tally(ballots, seeded(seed))
		if err != nil {
			t.Fatalf("tally failed: %v", err)
		}
		if result.Winner != "A" && result.Winner != "B" {
			t.Fatalf("winner %q is not an original first choice", result.Winner)
		}
	}
}

func TestTallyAllEmptyBallotsHasNoWinner(t *testing.T) {
	ballots := BallotSet{
		"voter1": {},
		"voter2": {},
	}
	result, err := Tally(ballots, seeded(1))
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.Winner != "" {
		t.Fatalf("expected no winner, got %q", result.Winner)
	}
	if len(result.Rounds) != 0 {
		t.Fatalf("expected no rounds, got %d", len(result.Rounds))
	}
}

func TestTallyDoesNotMutateInput(t *testing.T) {
	ballots := BallotSet{
		"voter1": {"A", "B", "C", "D"},
		"voter2": {"B", "A", "D", "C"},
		"voter3": {"D", "C", "A", "B"},
		"voter4": {"D", "C", "B", "A"},
		"voter5": {"A", "C", "B", "D"},
	}
	snapshot := make(BallotSet, len(ballots))
	for voter, ballot := range ballots {
		snapshot[voter] = append(Ballot(nil), ballot...)
	}
	if _, err := Tally(ballots, seeded(2)); err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if !reflect.DeepEqual(ballots, snapshot) {
		t.Fatalf("input ballot set was mutated: %v", ballots)
	}
}

// Round content is a stable multiset while ballot order inside each
// snapshot varies with the randomness source.
func TestTallySnapshotsAreShuffled(t *testing.T) {
	ballots := make(BallotSet)
	add := func(count int, ballot Ballot) {
		for i := 0; i < count; i++ {
			ballots[fmt.Sprintf("voter-%s-%d", ballot[0], i)] = append(Ballot(nil), ballot...)
		}
	}
	// No majority in round one; only E is eliminated, leaving a snapshot of
	// fifteen ballots with mixed contents.
	add(5, Ballot{"A"})
	add(4, Ballot{"B"})
	add(3, Ballot{"C"})
	add(2, Ballot{"D", "A"})
	add(1, Ballot{"E", "B"})

	orders := make(map[string]bool)
	var reference []string
	for seed := int64(0); seed < 20; seed++ {
		result, err := Tally(ballots, seeded(seed))
		if err != nil {
			t.Fatalf("tally failed: %v", err)
		}
		if len(result.Rounds) == 0 {
			t.Fatalf("expected at least one elimination round")
		}
		keys := make([]string, 0, len(result.Rounds[0]))
		for _, ballot := range result.Rounds[0] {
			keys = append(keys, strings.Join(ballot, ","))
		}
		orders[strings.Join(keys, "|")] = true

		sorted := append([]string(nil), keys...)
		sort.Strings(sorted)
		if reference == nil {
			reference = sorted
		} else if !reflect.DeepEqual(reference, sorted) {
			t.Fatalf("round content diverged between runs: %v vs %v", reference, sorted)
		}
	}
	if len(orders) < 2 {
		t.Fatalf("expected shuffled snapshots to differ across seeds")
	}
}

func TestTallyNilRandUsesSharedSource(t *testing.T) {
	result, err := Tally(BallotSet{
		"voter1": {"A", "B"},
		"voter2": {"A", "B"},
		"voter3": {"B", "A"},
	}, nil)
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.Winner != "A" {
		t.Fatalf("expected winner A, got %q", result.Winner)
	}
}

// Large random elections terminate well under the round ceiling and elect
// an option that appears on at least one ballot.
func TestTallyTerminatesOnLargeRandomElections(t *testing.T) {
	src := rand.New(rand.NewSource(42))
	options := make([]string, 30)
	for i := range options {
		options[i] = fmt.Sprintf("opt-%02d", i)
	}
	ballots := make(BallotSet, 200)
	for v := 0; v < 200; v++ {
		perm := src.Perm(len(options))
		depth := 1 + src.Intn(len(options))
		ballot := make(Ballot, 0, depth)
		for _, idx := range perm[:depth] {
			ballot = append(ballot, options[idx])
		}
		ballots[fmt.Sprintf("voter-%03d", v)] = ballot
	}

	result, err := Tally(ballots, seeded(99))
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.Winner == "" {
		t.Fatalf("expected a winner")
	}
	found := false
	for _, ballot := range ballots {
		for _, option := range ballot {
			if option == result.Winner {
				found = true
			}
		}
	}
	if !found {
		t.Fatalf("winner %q does not appear on any ballot", result.Winner)
	}
	if len(result.Rounds) >= maxRounds {
		t.Fatalf("round trace unexpectedly long: %d", len(result.Rounds))
	}
}
