package http

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/clubledger/internal/apperr"
	slackfmt "github.com/mauv0809/clubledger/internal/notifier/slack"
	"github.com/slack-go/slack"
)

const slackLeaderboardSize = 10

func (s *Server) LeaderboardCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("Received leaderboard command")
		members, err := s.Ledger.Leaderboard(r.Context(), slackLeaderboardSize)
		if err != nil {
			log.Error("Failed to load leaderboard", "error", err)
			http.Error(w, "Failed to load leaderboard", http.StatusInternalServerError)
			return
		}
		respondWithSlackMsg(w, slackfmt.FormatLeaderboard(members))
	}
}

// BalanceCommandHandler answers with the wallet of the member linked to the
// calling Slack user.
func (s *Server) BalanceCommandHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := slack.SlashCommandParse(r)
		if err != nil {
			log.Error("Failed to parse slash command", "error", err)
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
		log.Info("Received balance command", "user", cmd.UserID)
		member, err := s.Ledger.MemberBySlackID(r.Context(), cmd.UserID)
		if errors.Is(err, apperr.ErrNotFound) {
			respondWithSlackMsg(w, slackfmt.FormatMemberNotFound(cmd.UserID))
			return
		}
		if err != nil {
			log.Error("Failed to load member", "error", err, "user", cmd.UserID)
			http.Error(w, "Failed to load member", http.StatusInternalServerError)
			return
		}
		respondWithSlackMsg(w, slackfmt.FormatBalance(member))
	}
}
