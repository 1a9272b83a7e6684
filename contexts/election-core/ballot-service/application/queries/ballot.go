package queries

import (
	"context"
	"strings"

	"caucus/contexts/election-core/ballot-service/domain/entities"
	domainerrors "caucus/contexts/election-core/ballot-service/domain/errors"
	"caucus/contexts/election-core/ballot-service/ports"
)

// GetBallotQuery returns a voter's own ballot, submitted or not.
type GetBallotQuery struct {
	Ballots ports.BallotRepository
}

func (q GetBallotQuery) GetBallot(ctx context.Context, pollID string, voterID string) (entities.Ballot, error) {
	pollID = strings.TrimSpace(pollID)
	voterID = strings.TrimSpace(voterID)
	if pollID == "" || voterID == "" {
		return entities.Ballot{}, domainerrors.ErrInvalidBallotInput
	}
	return q.Ballots.GetBallot(ctx, pollID, voterID)
}
