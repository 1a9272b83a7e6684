package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "caucus/contexts/election-core/poll-service/application"
	"caucus/contexts/election-core/poll-service/application/commands"
	"caucus/contexts/election-core/poll-service/application/queries"
	"caucus/contexts/election-core/poll-service/domain/entities"
	httptransport "caucus/contexts/election-core/poll-service/transport/http"
)

type Handler struct {
	Polls       commands.PollUseCase
	Standings   queries.StandingsQuery
	ActivePolls queries.ActivePollsQuery
	GetPoll     queries.GetPollQuery
	Logger      *slog.Logger
}

// OpenPollHandler godoc
// @Summary Open a ranked-choice poll
// @Description Starts a poll in a channel. A channel holds at most one open poll.
// @Tags poll-service
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Acting user id"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param request body httptransport.OpenPollRequest true "Poll definition"
// @Success 201 {object} httptransport.PollResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls [post]
func (h Handler) OpenPollHandler(
	ctx context.Context,
	userID string,
	idempotencyKey string,
	req httptransport.OpenPollRequest,
) (httptransport.PollResponse, error) {
	logger := application.ResolveLogger(h.Logger)
	logger.Info("open poll request received",
		"event", "http_open_poll_received",
		"module", "election-core/poll-service",
		"layer", "transport",
		"channel_id", req.ChannelID,
	)
	result, err := h.Polls.OpenPoll(ctx, commands.OpenPollCommand{
		ChannelID:      req.ChannelID,
		Title:          req.Title,
		Description:    req.Description,
		OptionLabels:   req.Options,
		CreatedBy:      userID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapPoll(result.Poll, result.Replayed), nil
}

// ClosePollHandler godoc
// @Summary Close a poll and tally
// @Description Runs the instant-runoff tally, records the winner, and publishes the result.
// @Tags poll-service
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Acting user id"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param poll_id path string true "Poll id"
// @Success 200 {object} httptransport.ClosePollResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 422 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls/{poll_id}/close [post]
func (h Handler) ClosePollHandler(
	ctx context.Context,
	pollID string,
	userID string,
	idempotencyKey string,
) (httptransport.ClosePollResponse, error) {
	result, err := h.Polls.ClosePoll(ctx, commands.ClosePollCommand{
		PollID:         pollID,
		ActorID:        userID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.ClosePollResponse{}, err
	}
	return httptransport.ClosePollResponse{
		PollID:            result.Poll.PollID,
		WinnerOptionID:    result.WinnerOptionID,
		WinnerLabel:       result.Poll.OptionLabels()[result.WinnerOptionID],
		AnonymizedBallots: result.AnonymizedBallots,
		Rounds:            mapRounds(result.Rounds),
		Replayed:          result.Replayed,
	}, nil
}

// CancelPollHandler godoc
// @Summary Cancel an open poll
// @Description Abandons an open poll without tallying any ballots.
// @Tags poll-service
// @Produce json
// @Param X-User-Id header string true "Acting user id"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param poll_id path string true "Poll id"
// @Success 204 {string} string "no content"
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls/{poll_id}/cancel [post]
func (h Handler) CancelPollHandler(
	ctx context.Context,
	pollID string,
	userID string,
	idempotencyKey string,
) error {
	return h.Polls.CancelPoll(ctx, commands.CancelPollCommand{
		PollID:         pollID,
		ActorID:        userID,
		IdempotencyKey: idempotencyKey,
	})
}

// RemindVotersHandler godoc
// @Summary Remind the channel about an open poll
// @Description Emits a reminder event for the poll's channel. Safe to repeat.
// @Tags poll-service
// @Produce json
// @Param X-User-Id header string true "Acting user id"
// @Param poll_id path string true "Poll id"
// @Success 202 {string} string "accepted"
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls/{poll_id}/remind [post]
func (h Handler) RemindVotersHandler(ctx context.Context, pollID string, userID string) error {
	return h.Polls.RemindVoters(ctx, commands.RemindVotersCommand{
		PollID:  pollID,
		ActorID: userID,
	})
}

// StandingsHandler godoc
// @Summary Current poll standings
// @Description Returns the leader under an instant-runoff count of the ballots submitted so far.
// @Tags poll-service
// @Produce json
// @Param poll_id path string true "Poll id"
// @Success 200 {object} httptransport.StandingsResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls/{poll_id}/standings [get]
func (h Handler) StandingsHandler(ctx context.Context, pollID string) (httptransport.StandingsResponse, error) {
	standing, err := h.Standings.Standing(ctx, pollID)
	if err != nil {
		return httptransport.StandingsResponse{}, err
	}
	items := make([]httptransport.OptionStandingItem, 0, len(standing.Standings))
	for _, item := range standing.Standings {
		items = append(items, httptransport.OptionStandingItem{
			OptionID:         item.OptionID,
			Label:            item.Label,
			FirstChoiceVotes: item.FirstChoiceVotes,
		})
	}
	return httptransport.StandingsResponse{
		PollID:         standing.PollID,
		LeaderOptionID: standing.LeaderOptionID,
		SubmittedCount: standing.SubmittedCount,
		Standings:      items,
		Rounds:         mapRounds(standing.Rounds),
	}, nil
}

// ActivePollsHandler godoc
// @Summary List open polls
// @Description Returns every open poll with its submission count.
// @Tags poll-service
// @Produce json
// @Success 200 {object} httptransport.ActivePollsResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls [get]
func (h Handler) ActivePollsHandler(ctx context.Context) (httptransport.ActivePollsResponse, error) {
	summaries, err := h.ActivePolls.ActivePolls(ctx)
	if err != nil {
		return httptransport.ActivePollsResponse{}, err
	}
	items := make([]httptransport.ActivePollItem, 0, len(summaries))
	for _, summary := range summaries {
		items = append(items, httptransport.ActivePollItem{
			PollID:         summary.PollID,
			ChannelID:      summary.ChannelID,
			Title:          summary.Title,
			SubmittedCount: summary.SubmittedCount,
			CreatedAt:      summary.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return httptransport.ActivePollsResponse{Items: items}, nil
}

// GetPollHandler godoc
// @Summary Get one poll
// @Description Returns a poll with its options and lifecycle state.
// @Tags poll-service
// @Produce json
// @Param poll_id path string true "Poll id"
// @Success 200 {object} httptransport.PollResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls/{poll_id} [get]
func (h Handler) GetPollHandler(ctx context.Context, pollID string) (httptransport.PollResponse, error) {
	poll, err := h.GetPoll.GetPoll(ctx, pollID)
	if err != nil {
		return httptransport.PollResponse{}, err
	}
	return mapPoll(poll, false), nil
}

func mapPoll(poll entities.Poll, replayed bool) httptransport.PollResponse {
	options := make([]httptransport.PollOptionItem, 0, len(poll.Options))
	for _, option := range poll.Options {
		options = append(options, httptransport.PollOptionItem{
			OptionID: option.OptionID,
			Label:    option.Label,
		})
	}
	closedAt := ""
	if poll.ClosedAt != nil {
		closedAt = poll.ClosedAt.UTC().Format(time.RFC3339)
	}
	return httptransport.PollResponse{
		PollID:         poll.PollID,
		ChannelID:      poll.ChannelID,
		Title:          poll.Title,
		Description:    poll.Description,
		Options:        options,
		Status:         string(poll.Status),
		CreatedBy:      poll.CreatedBy,
		WinnerOptionID: poll.WinnerOptionID,
		CreatedAt:      poll.CreatedAt.UTC().Format(time.RFC3339),
		ClosedAt:       closedAt,
		Replayed:       replayed,
	}
}

func mapRounds(rounds []entities.RoundTrace) [][][]string {
	mapped := make([][][]string, 0, len(rounds))
	for _, round := range rounds {
		mapped = append(mapped, [][]string(round))
	}
	return mapped
}
