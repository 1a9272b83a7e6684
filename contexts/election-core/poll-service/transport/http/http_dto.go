package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type OpenPollRequest struct {
	ChannelID   string   `json:"channel_id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Options     []string `json:"options"`
}

type PollOptionItem struct {
	OptionID string `json:"option_id"`
	Label    string `json:"label"`
}

type PollResponse struct {
	PollID         string           `json:"poll_id"`
	ChannelID      string           `json:"channel_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description,omitempty"`
	Options        []PollOptionItem `json:"options"`
	Status         string           `json:"status"`
	CreatedBy      string           `json:"created_by"`
	WinnerOptionID string           `json:"winner_option_id,omitempty"`
	CreatedAt      string           `json:"created_at"`
	ClosedAt       string           `json:"closed_at,omitempty"`
	Replayed       bool             `json:"replayed"`
}

type ClosePollResponse struct {
	PollID            string       `json:"poll_id"`
	WinnerOptionID    string       `json:"winner_option_id"`
	WinnerLabel       string       `json:"winner_label,omitempty"`
	AnonymizedBallots [][]string   `json:"anonymized_ballots"`
	Rounds            [][][]string `json:"rounds"`
	Replayed          bool         `json:"replayed"`
}

type OptionStandingItem struct {
	OptionID         string `json:"option_id"`
	Label            string `json:"label"`
	FirstChoiceVotes int    `json:"first_choice_votes"`
}

type StandingsResponse struct {
	PollID         string               `json:"poll_id"`
	LeaderOptionID string               `json:"leader_option_id,omitempty"`
	SubmittedCount int                  `json:"submitted_count"`
	Standings      []OptionStandingItem `json:"standings"`
	Rounds         [][][]string         `json:"rounds"`
}

type ActivePollItem struct {
	PollID         string `json:"poll_id"`
	ChannelID      string `json:"channel_id"`
	Title          string `json:"title"`
	SubmittedCount int    `json:"submitted_count"`
	CreatedAt      string `json:"created_at"`
}

type ActivePollsResponse struct {
	Items []ActivePollItem `json:"items"`
}
