package entities

import "time"

// Ballot is one voter's ranking of a poll's options, most preferred first.
// Rankings hold option IDs and stay free of duplicates: ranking an option
// that is already on the ballot is a no-op. Once submitted a ballot is
// immutable.
type Ballot struct {
	PollID    string
	VoterID   string
	Rankings  []string
	Submitted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRanked reports whether the option already appears on the ballot.
func (b Ballot) HasRanked(optionID string) bool {
	for _, ranked := range b.Rankings {
		if ranked == optionID {
			return true
		}
	}
	return false
}
