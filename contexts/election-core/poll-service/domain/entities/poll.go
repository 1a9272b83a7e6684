package entities

import "time"

type PollStatus string

const (
	PollStatusOpen      PollStatus = "open"
	PollStatusClosed    PollStatus = "closed"
	PollStatusCancelled PollStatus = "cancelled"
)

// PollOption is one choice on the ballot. OptionID is the opaque token
// voters rank; Label is the human-readable text shown in announcements.
type PollOption struct {
	OptionID string
	Label    string
}

type Poll struct {
	PollID         string
	ChannelID      string
	Title          string
	Description    string
	Options        []PollOption
	Status         PollStatus
	CreatedBy      string
	WinnerOptionID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
}

func (p Poll) IsOpen() bool {
	return p.Status == PollStatusOpen
}

// OptionLabels maps option IDs to labels for result rendering.
func (p Poll) OptionLabels() map[string]string {
	labels := make(map[string]string, len(p.Options))
	for _, option := range p.Options {
		labels[option.OptionID] = option.Label
	}
	return labels
}

// HasOption reports whether the option ID belongs to this poll.
func (p Poll) HasOption(optionID string) bool {
	for _, option := range p.Options {
		if option.OptionID == optionID {
			return true
		}
	}
	return false
}

// OptionStanding is one option's first-choice support in the current count.
type OptionStanding struct {
	OptionID         string
	Label            string
	FirstChoiceVotes int
}

// RoundTrace is the anonymized ballot state after one elimination round:
// each entry is one ballot's remaining rankings, in shuffled order.
type RoundTrace [][]string

// PollStanding is the point-in-time tally of an open poll: the option that
// would win if the poll closed now, plus the audit trail of elimination
// rounds.
type PollStanding struct {
	PollID         string
	LeaderOptionID string
	SubmittedCount int
	Standings      []OptionStanding
	Rounds         []RoundTrace
}

// PollSummary is the dashboard row for an active poll.
type PollSummary struct {
	PollID         string
	ChannelID      string
	Title          string
	SubmittedCount int
	CreatedAt      time.Time
}
