package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	ballotservice "caucus/contexts/election-core/ballot-service"
	ballotdomainerrors "caucus/contexts/election-core/ballot-service/domain/errors"
	ballothttp "caucus/contexts/election-core/ballot-service/transport/http"
	pollservice "caucus/contexts/election-core/poll-service"
	polldomainerrors "caucus/contexts/election-core/poll-service/domain/errors"
	pollhttp "caucus/contexts/election-core/poll-service/transport/http"

	_ "caucus/internal/platform/httpserver/docs"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	polls   pollservice.Module
	ballots ballotservice.Module
}

func New(
	polls pollservice.Module,
	ballots ballotservice.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		polls:   polls,
		ballots: ballots,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/polls/v1/polls", s.handleOpenPoll)
	s.mux.HandleFunc("GET /api/polls/v1/polls", s.handleActivePolls)
	s.mux.HandleFunc("GET /api/polls/v1/polls/{poll_id}", s.handleGetPoll)
	s.mux.HandleFunc("POST /api/polls/v1/polls/{poll_id}/close", s.handleClosePoll)
	s.mux.HandleFunc("POST /api/polls/v1/polls/{poll_id}/cancel", s.handleCancelPoll)
	s.mux.HandleFunc("POST /api/polls/v1/polls/{poll_id}/remind", s.handleRemindVoters)
	s.mux.HandleFunc("GET /api/polls/v1/polls/{poll_id}/standings", s.handleStandings)

	s.mux.HandleFunc("POST /api/ballots/v1/polls/{poll_id}/ballot/rank", s.handleRankOption)
	s.mux.HandleFunc("POST /api/ballots/v1/polls/{poll_id}/ballot/clear", s.handleClearBallot)
	s.mux.HandleFunc("POST /api/ballots/v1/polls/{poll_id}/ballot/submit", s.handleSubmitBallot)
	s.mux.HandleFunc("GET /api/ballots/v1/polls/{poll_id}/ballot", s.handleGetBallot)
}

func (s *Server) handleOpenPoll(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req pollhttp.OpenPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.polls.Handler.OpenPollHandler(
		r.Context(),
		userID,
		r.Header.Get("Idempotency-Key"),
		req,
	)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if resp.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleActivePolls(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.ActivePollsHandler(r.Context())
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.GetPollHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClosePoll(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.polls.Handler.ClosePollHandler(
		r.Context(),
		r.PathValue("poll_id"),
		userID,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelPoll(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	err := s.polls.Handler.CancelPollHandler(
		r.Context(),
		r.PathValue("poll_id"),
		userID,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemindVoters(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	if err := s.polls.Handler.RemindVotersHandler(r.Context(), r.PathValue("poll_id"), userID); err != nil {
		writePollDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.StandingsHandler(r.Context(), r.PathValue("poll_id"))
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRankOption(w http.ResponseWriter, r *http.Request) {
	voterID := resolveVoterID(r)
	if voterID == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ballothttp.RankOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBallotError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ballots.Handler.RankOptionHandler(r.Context(), r.PathValue("poll_id"), voterID, req)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearBallot(w http.ResponseWriter, r *http.Request) {
	voterID := resolveVoterID(r)
	if voterID == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.ballots.Handler.ClearBallotHandler(r.Context(), r.PathValue("poll_id"), voterID)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSubmitBallot(w http.ResponseWriter, r *http.Request) {
	voterID := resolveVoterID(r)
	if voterID == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.ballots.Handler.SubmitBallotHandler(
		r.Context(),
		r.PathValue("poll_id"),
		voterID,
		r.Header.Get("Idempotency-Key"),
	)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBallot(w http.ResponseWriter, r *http.Request) {
	voterID := resolveVoterID(r)
	if voterID == "" {
		writeBallotError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	resp, err := s.ballots.Handler.GetBallotHandler(r.Context(), r.PathValue("poll_id"), voterID)
	if err != nil {
		writeBallotDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writePollDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, polldomainerrors.ErrPollNotFound):
		writePollError(w, http.StatusNotFound, "poll_not_found", err.Error())
	case errors.Is(err, polldomainerrors.ErrChannelHasOpenPoll):
		writePollError(w, http.StatusConflict, "channel_has_open_poll", err.Error())
	case errors.Is(err, polldomainerrors.ErrPollNotOpen),
		errors.Is(err, polldomainerrors.ErrConflict),
		errors.Is(err, polldomainerrors.ErrIdempotencyConflict):
		writePollError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, polldomainerrors.ErrNoBallotsSubmitted):
		writePollError(w, http.StatusUnprocessableEntity, "no_ballots_submitted", err.Error())
	case errors.Is(err, polldomainerrors.ErrInvalidPollInput),
		errors.Is(err, polldomainerrors.ErrNotEnoughOptions):
		writePollError(w, http.StatusBadRequest, "invalid_poll", err.Error())
	case errors.Is(err, polldomainerrors.ErrIdempotencyKeyRequired):
		writePollError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	default:
		writePollError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeBallotDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ballotdomainerrors.ErrPollNotFound),
		errors.Is(err, ballotdomainerrors.ErrBallotNotFound):
		writeBallotError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrPollNotOpen),
		errors.Is(err, ballotdomainerrors.ErrBallotAlreadySubmitted),
		errors.Is(err, ballotdomainerrors.ErrConflict),
		errors.Is(err, ballotdomainerrors.ErrIdempotencyConflict):
		writeBallotError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrUnknownOption),
		errors.Is(err, ballotdomainerrors.ErrInvalidBallotInput):
		writeBallotError(w, http.StatusBadRequest, "invalid_ballot", err.Error())
	case errors.Is(err, ballotdomainerrors.ErrIdempotencyKeyRequired):
		writeBallotError(w, http.StatusBadRequest, "idempotency_key_required", err.Error())
	default:
		writeBallotError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePollError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pollhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeBallotError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ballothttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func resolveVoterID(r *http.Request) string {
	if fromHeader := strings.TrimSpace(r.Header.Get("X-User-Id")); fromHeader != "" {
		return fromHeader
	}
	return strings.TrimSpace(r.Header.Get("X-Voter-Id"))
}
