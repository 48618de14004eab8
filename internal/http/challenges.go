package http

import (
	"net/http"

	"github.com/mauv0809/clubledger/internal/challenge"
	"github.com/shopspring/decimal"
)

func (s *Server) CreateChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OpponentID string          `json:"opponentId"`
			Stake      decimal.Decimal `json:"stake"`
			Message    string          `json:"message"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		c, err := s.Challenges.Create(r.Context(), principal(r).MemberID, req.OpponentID, req.Stake, req.Message)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func (s *Server) AcceptChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.Challenges.Accept(r.Context(), r.PathValue("id"), principal(r).MemberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *Server) ChallengeResultHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			WinnerID string `json:"winnerId"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		c, err := s.Challenges.SetResult(r.Context(), r.PathValue("id"), principal(r).MemberID, req.WinnerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *Server) CancelChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.Challenges.Cancel(r.Context(), r.PathValue("id"), principal(r).MemberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *Server) GetChallengeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.Challenges.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// ListChallengesHandler accepts filter=mine|open|finished.
func (s *Server) ListChallengesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := challenge.Filter(r.URL.Query().Get("filter"))
		list, err := s.Challenges.List(r.Context(), principal(r).MemberID, filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
