package httpadapter

import (
	"context"
	"log/slog"

	"caucus/contexts/election-core/ballot-service/application/commands"
	"caucus/contexts/election-core/ballot-service/application/queries"
	"caucus/contexts/election-core/ballot-service/domain/entities"
	httptransport "caucus/contexts/election-core/ballot-service/transport/http"
)

type Handler struct {
	Ballots commands.BallotUseCase
	Reads   queries.GetBallotQuery
	Logger  *slog.Logger
}

// RankOptionHandler godoc
// @Summary Rank an option
// @Description Appends the option to the voter's working ballot. Repeating a rank is a no-op.
// @Tags ballot-service
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Voter id"
// @Param poll_id path string true "Poll id"
// @Param request body httptransport.RankOptionRequest true "Option to rank"
// @Success 200 {object} httptransport.BallotResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls/{poll_id}/ballot/rank [post]
func (h Handler) RankOptionHandler(
	ctx context.Context,
	pollID string,
	voterID string,
	req httptransport.RankOptionRequest,
) (httptransport.BallotResponse, error) {
	result, err := h.Ballots.RankOption(ctx, commands.RankOptionCommand{
		PollID:   pollID,
		VoterID:  voterID,
		OptionID: req.OptionID,
	})
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	response := mapBallot(result.Ballot)
	response.AlreadyRanked = result.AlreadyRanked
	return response, nil
}

// ClearBallotHandler godoc
// @Summary Clear the working ballot
// @Description Removes every ranking so the voter can start over.
// @Tags ballot-service
// @Produce json
// @Param X-User-Id header string true "Voter id"
// @Param poll_id path string true "Poll id"
// @Success 200 {object} httptransport.BallotResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls/{poll_id}/ballot/clear [post]
func (h Handler) ClearBallotHandler(ctx context.Context, pollID string, voterID string) (httptransport.BallotResponse, error) {
	ballot, err := h.Ballots.ClearBallot(ctx, commands.ClearBallotCommand{
		PollID:  pollID,
		VoterID: voterID,
	})
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	return mapBallot(ballot), nil
}

// SubmitBallotHandler godoc
// @Summary Submit the ballot
// @Description Freezes the voter's rankings. A submitted ballot cannot change.
// @Tags ballot-service
// @Produce json
// @Param X-User-Id header string true "Voter id"
// @Param Idempotency-Key header string true "Idempotency key"
// @Param poll_id path string true "Poll id"
// @Success 200 {object} httptransport.BallotResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls/{poll_id}/ballot/submit [post]
func (h Handler) SubmitBallotHandler(
	ctx context.Context,
	pollID string,
	voterID string,
	idempotencyKey string,
) (httptransport.BallotResponse, error) {
	result, err := h.Ballots.SubmitBallot(ctx, commands.SubmitBallotCommand{
		PollID:         pollID,
		VoterID:        voterID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	response := mapBallot(result.Ballot)
	response.Replayed = result.Replayed
	return response, nil
}

// GetBallotHandler godoc
// @Summary Get the voter's own ballot
// @Description Returns the caller's ballot for the poll, draft or submitted.
// @Tags ballot-service
// @Produce json
// @Param X-User-Id header string true "Voter id"
// @Param poll_id path string true "Poll id"
// @Success 200 {object} httptransport.BallotResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /polls/{poll_id}/ballot [get]
func (h Handler) GetBallotHandler(ctx context.Context, pollID string, voterID string) (httptransport.BallotResponse, error) {
	ballot, err := h.Reads.GetBallot(ctx, pollID, voterID)
	if err != nil {
		return httptransport.BallotResponse{}, err
	}
	return mapBallot(ballot), nil
}

func mapBallot(ballot entities.Ballot) httptransport.BallotResponse {
	rankings := ballot.Rankings
	if rankings == nil {
		rankings = []string{}
	}
	return httptransport.BallotResponse{
		PollID:    ballot.PollID,
		VoterID:   ballot.VoterID,
		Rankings:  rankings,
		Submitted: ballot.Submitted,
	}
}
