package queries

import (
	"context"
	"testing"
	"time"

	"caucus/contexts/election-core/poll-service/domain/entities"
	domainerrors "caucus/contexts/election-core/poll-service/domain/errors"
	"caucus/contexts/election-core/poll-service/domain/tally"
)

type fakePollRepo struct {
	polls map[string]entities.Poll
}

func (r fakePollRepo) SavePoll(_ context.Context, poll entities.Poll) error {
	r.polls[poll.PollID] = poll
	return nil
}

func (r fakePollRepo) GetPoll(_ context.Context, pollID string) (entities.Poll, error) {
	poll, ok := r.polls[pollID]
	if !ok {
		return entities.Poll{}, domainerrors.ErrPollNotFound
	}
	return poll, nil
}

func (r fakePollRepo) GetOpenPollByChannel(_ context.Context, channelID string) (entities.Poll, bool, error) {
	for _, poll := range r.polls {
		if poll.ChannelID == channelID && poll.IsOpen() {
			return poll, true, nil
		}
	}
	return entities.Poll{}, false, nil
}

func (r fakePollRepo) ListOpenPolls(_ context.Context) ([]entities.Poll, error) {
	items := make([]entities.Poll, 0)
	for _, poll := range r.polls {
		if poll.IsOpen() {
			items = append(items, poll)
		}
	}
	return items, nil
}

type fakeBallots struct {
	rankings map[string]map[string][]string
}

func (b fakeBallots) SubmittedRankings(_ context.Context, pollID string) (map[string][]string, error) {
	out := make(map[string][]string, len(b.rankings[pollID]))
	for voterID, ballot := range b.rankings[pollID] {
		out[voterID] = append([]string(nil), ballot...)
	}
	return out, nil
}

func testPoll() entities.Poll {
	return entities.Poll{
		PollID:    "poll-1",
		ChannelID: "chan-1",
		Title:     "Team vote",
		Options: []entities.PollOption{
			{OptionID: "opt-a", Label: "Alpha"},
			{OptionID: "opt-b", Label: "Beta"},
			{OptionID: "opt-c", Label: "Gamma"},
		},
		Status:    entities.PollStatusOpen,
		CreatedBy: "user-1",
		CreatedAt: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestStandingIncludesZeroVoteOptions(t *testing.T) {
	poll := testPoll()
	query := StandingsQuery{
		Polls: fakePollRepo{polls: map[string]entities.Poll{poll.PollID: poll}},
		Ballots: fakeBallots{rankings: map[string]map[string][]string{
			poll.PollID: {
				"voter-1": {"opt-a", "opt-b"},
				"voter-2": {"opt-a"},
				"voter-3": {"opt-b"},
			},
		}},
		Rand: tally.Locked(11),
	}

	standing, err := query.Standing(context.Background(), poll.PollID)
	if err != nil {
		t.Fatalf("standing: %v", err)
	}
	if standing.LeaderOptionID != "opt-a" {
		t.Fatalf("expected opt-a to lead, got %q", standing.LeaderOptionID)
	}
	if standing.SubmittedCount != 3 {
		t.Fatalf("expected 3 submissions, got %d", standing.SubmittedCount)
	}
	if len(standing.Standings) != 3 {
		t.Fatalf("expected all declared options in standings, got %d", len(standing.Standings))
	}
	last := standing.Standings[len(standing.Standings)-1]
	if last.OptionID != "opt-c" || last.FirstChoiceVotes != 0 {
		t.Fatalf("expected opt-c with zero votes last, got %+v", last)
	}
}

func TestStandingWithoutBallotsHasNoLeader(t *testing.T) {
	poll := testPoll()
	query := StandingsQuery{
		Polls:   fakePollRepo{polls: map[string]entities.Poll{poll.PollID: poll}},
		Ballots: fakeBallots{rankings: map[string]map[string][]string{}},
		Rand:    tally.Locked(11),
	}

	standing, err := query.Standing(context.Background(), poll.PollID)
	if err != nil {
		t.Fatalf("standing: %v", err)
	}
	if standing.LeaderOptionID != "" {
		t.Fatalf("expected no leader, got %q", standing.LeaderOptionID)
	}
	if len(standing.Standings) != 3 {
		t.Fatalf("expected all declared options, got %d", len(standing.Standings))
	}
}

func TestActivePollsSortedByCreation(t *testing.T) {
	older := testPoll()
	newer := testPoll()
	newer.PollID = "poll-2"
	newer.ChannelID = "chan-2"
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	query := ActivePollsQuery{
		Polls: fakePollRepo{polls: map[string]entities.Poll{
			newer.PollID: newer,
			older.PollID: older,
		}},
		Ballots: fakeBallots{rankings: map[string]map[string][]string{
			older.PollID: {"voter-1": {"opt-a"}},
		}},
	}

	summaries, err := query.ActivePolls(context.Background())
	if err != nil {
		t.Fatalf("active polls: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 open polls, got %d", len(summaries))
	}
	if summaries[0].PollID != older.PollID {
		t.Fatalf("expected oldest poll first, got %q", summaries[0].PollID)
	}
	if summaries[0].SubmittedCount != 1 || summaries[1].SubmittedCount != 0 {
		t.Fatalf("unexpected submission counts: %d, %d", summaries[0].SubmittedCount, summaries[1].SubmittedCount)
	}
}
