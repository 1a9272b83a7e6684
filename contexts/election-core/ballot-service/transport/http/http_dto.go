package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RankOptionRequest struct {
	OptionID string `json:"option_id"`
}

type BallotResponse struct {
	PollID        string   `json:"poll_id"`
	VoterID       string   `json:"voter_id"`
	Rankings      []string `json:"rankings"`
	Submitted     bool     `json:"submitted"`
	AlreadyRanked bool     `json:"already_ranked,omitempty"`
	Replayed      bool     `json:"replayed,omitempty"`
}
