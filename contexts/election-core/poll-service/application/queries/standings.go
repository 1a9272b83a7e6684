package queries

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	application "caucus/contexts/election-core/poll-service/application"
	"caucus/contexts/election-core/poll-service/domain/entities"
	domainerrors "caucus/contexts/election-core/poll-service/domain/errors"
	"caucus/contexts/election-core/poll-service/domain/tally"
	"caucus/contexts/election-core/poll-service/ports"
)

// StandingsQuery answers "who would win if the poll closed now". It runs the
// same instant-runoff tally as the close path but persists nothing and emits
// no events.
type StandingsQuery struct {
	Polls   ports.PollRepository
	Ballots ports.BallotReader
	Rand    ports.TallyRand
	Logger  *slog.Logger
}

func (q StandingsQuery) Standing(ctx context.Context, pollID string) (entities.PollStanding, error) {
	logger := application.ResolveLogger(q.Logger)
	pollID = strings.TrimSpace(pollID)
	if pollID == "" {
		return entities.PollStanding{}, domainerrors.ErrInvalidPollInput
	}
	poll, err := q.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return entities.PollStanding{}, err
	}
	rankings, err := q.Ballots.SubmittedRankings(ctx, poll.PollID)
	if err != nil {
		return entities.PollStanding{}, err
	}

	standing := entities.PollStanding{
		PollID:         poll.PollID,
		SubmittedCount: len(rankings),
		Standings:      firstChoiceStandings(poll, rankings),
	}
	if len(rankings) == 0 {
		return standing, nil
	}

	rng := q.Rand
	if rng == nil {
		rng = tally.Default()
	}
	set := make(tally.BallotSet, len(rankings))
	for voterID, ballot := range rankings {
		set[voterID] = append(tally.Ballot(nil), ballot...)
	}
	result, err := tally.Tally(set, rng)
	if err != nil {
		logger.Error("standings tally aborted",
			"event", "standings_tally_invariant_violation",
			"module", "election-core/poll-service",
			"layer", "application",
			"poll_id", poll.PollID,
			"error", err.Error(),
		)
		return entities.PollStanding{}, domainerrors.ErrTallyFailed
	}
	standing.LeaderOptionID = result.Winner
	standing.Rounds = make([]entities.RoundTrace, 0, len(result.Rounds))
	for _, round := range result.Rounds {
		trace := make(entities.RoundTrace, 0, len(round))
		for _, ballot := range round {
			trace = append(trace, append([]string(nil), ballot...))
		}
		standing.Rounds = append(standing.Rounds, trace)
	}
	return standing, nil
}

// ActivePollsQuery lists open polls with their submission counts.
type ActivePollsQuery struct {
	Polls   ports.PollRepository
	Ballots ports.BallotReader
	Logger  *slog.Logger
}

func (q ActivePollsQuery) ActivePolls(ctx context.Context) ([]entities.PollSummary, error) {
	polls, err := q.Polls.ListOpenPolls(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]entities.PollSummary, 0, len(polls))
	for _, poll := range polls {
		rankings, err := q.Ballots.SubmittedRankings(ctx, poll.PollID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, entities.PollSummary{
			PollID:         poll.PollID,
			ChannelID:      poll.ChannelID,
			Title:          poll.Title,
			SubmittedCount: len(rankings),
			CreatedAt:      poll.CreatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].PollID < summaries[j].PollID
	})
	return summaries, nil
}

// GetPollQuery fetches one poll by ID.
type GetPollQuery struct {
	Polls ports.PollRepository
}

func (q GetPollQuery) GetPoll(ctx context.Context, pollID string) (entities.Poll, error) {
	pollID = strings.TrimSpace(pollID)
	if pollID == "" {
		return entities.Poll{}, domainerrors.ErrInvalidPollInput
	}
	return q.Polls.GetPoll(ctx, pollID)
}

// firstChoiceStandings zero-initializes every declared option so options
// nobody ranked still show up with a zero count.
func firstChoiceStandings(poll entities.Poll, rankings map[string][]string) []entities.OptionStanding {
	counts := make(map[string]int, len(poll.Options))
	for _, option := range poll.Options {
		counts[option.OptionID] = 0
	}
	for _, ballot := range rankings {
		if len(ballot) == 0 {
			continue
		}
		if _, ok := counts[ballot[0]]; ok {
			counts[ballot[0]]++
		}
	}
	standings := make([]entities.OptionStanding, 0, len(poll.Options))
	for _, option := range poll.Options {
		standings = append(standings, entities.OptionStanding{
			OptionID:         option.OptionID,
			Label:            option.Label,
			FirstChoiceVotes: counts[option.OptionID],
		})
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].FirstChoiceVotes != standings[j].FirstChoiceVotes {
			return standings[i].FirstChoiceVotes > standings[j].FirstChoiceVotes
		}
		return standings[i].Label < standings[j].Label
	})
	return standings
}
