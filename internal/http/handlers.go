package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/catalog"
	"github.com/mauv0809/clubledger/internal/events"
	"github.com/mauv0809/clubledger/internal/identity"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/notifier"
	"github.com/mauv0809/clubledger/internal/sweeper"
	"github.com/shopspring/decimal"
)

func (s *Server) HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Received health check request")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK!")
	}
}

// WebsocketHandler subscribes the caller to live notifications. Browsers
// cannot set headers on an upgrade, so the member may come from the query.
func (s *Server) WebsocketHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Sockets == nil {
			http.Error(w, "Live notifications are disabled", http.StatusServiceUnavailable)
			return
		}
		memberID := principal(r).MemberID
		if memberID == "" {
			memberID = r.URL.Query().Get("member")
		}
		if memberID == "" {
			writeError(w, apperr.Validationf("member is required"))
			return
		}
		s.Sockets.ServeWS(w, r, memberID, r.URL.Query()["room"]...)
	}
}

// PushHandler receives events relayed through a Pub/Sub push subscription
// and delivers them to the local notifiers.
func (s *Server) PushHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.PubSub == nil {
			http.Error(w, "Pub/Sub is not configured", http.StatusServiceUnavailable)
			return
		}
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", "error", err)
			http.Error(w, "Failed to read request body", http.StatusInternalServerError)
			return
		}
		log.Debug("Received push message", "body", string(bodyBytes))

		e, err := events.FromPush(s.PubSub, bodyBytes)
		if err != nil {
			log.Error("Failed to decode push message", "error", err)
			http.Error(w, "Invalid push message", http.StatusBadRequest)
			return
		}
		// Delivery is best effort; a redelivery would duplicate the
		// notifications that did go out.
		if err := events.Deliver(r.Context(), s.Notifier, e); err != nil {
			log.Warn("Push delivery incomplete", "type", e.Type, "error", err)
		}
		w.Write([]byte("OK"))
	}
}

func (s *Server) CreateMemberHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := principal(r).Require(identity.RoleAdmin); err != nil {
			writeError(w, err)
			return
		}
		var req struct {
			Name        string  `json:"name"`
			SlackUserID string  `json:"slackUserId"`
			RankLevel   float64 `json:"rankLevel"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, apperr.Validationf("name is required"))
			return
		}
		m, err := s.Ledger.CreateMember(r.Context(), req.Name, req.SlackUserID, req.RankLevel)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func (s *Server) ListMembersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := queryInt(r, "page", 1)
		if err != nil {
			writeError(w, err)
			return
		}
		size, err := queryInt(r, "size", 0)
		if err != nil {
			writeError(w, err)
			return
		}
		members, err := s.Ledger.ListMembers(r.Context(), r.URL.Query().Get("search"), page, size)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, members)
	}
}

func (s *Server) GetMemberHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.Ledger.GetMember(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func (s *Server) LeaderboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		top, err := queryInt(r, "top", 10)
		if err != nil {
			writeError(w, err)
			return
		}
		board, err := s.Ledger.Leaderboard(r.Context(), top)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, board)
	}
}

func (s *Server) WalletHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.Ledger.GetMember(r.Context(), principal(r).MemberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func (s *Server) EntriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.Ledger.Entries(r.Context(), principal(r).MemberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) RequestDepositHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		entry, err := s.Ledger.RequestDeposit(r.Context(), principal(r).MemberID, req.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		events.Emit(r.Context(), s.Publisher, events.Event{
			Type:       events.DepositRequested,
			Recipients: []string{entry.MemberID},
			Text:       fmt.Sprintf("Deposit of %s is awaiting approval", entry.Amount.StringFixed(2)),
		})
		writeJSON(w, http.StatusCreated, entry)
	}
}

func (s *Server) PendingDepositsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := principal(r).Require(identity.RoleAdmin); err != nil {
			writeError(w, err)
			return
		}
		entries, err := s.Ledger.PendingDeposits(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func (s *Server) ApproveDepositHandler() http.HandlerFunc {
	return s.reviewDeposit(s.Ledger.Approve, events.DepositApproved, notifier.LevelSuccess, "approved")
}

func (s *Server) RejectDepositHandler() http.HandlerFunc {
	return s.reviewDeposit(s.Ledger.Reject, events.DepositRejected, notifier.LevelWarning, "rejected")
}

type depositReview func(ctx context.Context, p identity.Principal, entryID string) (*ledger.Entry, error)

func (s *Server) reviewDeposit(review depositReview, typ events.Type, level notifier.Level, verb string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := review(r.Context(), principal(r), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		events.Emit(r.Context(), s.Publisher, events.Event{
			Type:       typ,
			Recipients: []string{entry.MemberID},
			Level:      level,
			Text:       fmt.Sprintf("Your deposit of %s was %s", entry.Amount.StringFixed(2), verb),
		})
		writeJSON(w, http.StatusOK, entry)
	}
}

func (s *Server) ListCourtsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courts, err := s.Catalog.List(r.Context(), r.URL.Query().Get("all") != "true")
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, courts)
	}
}

func (s *Server) UpsertCourtHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := principal(r).Require(identity.RoleAdmin); err != nil {
			writeError(w, err)
			return
		}
		var court catalog.Court
		if err := decodeJSON(r, &court); err != nil {
			writeError(w, err)
			return
		}
		saved, err := s.Catalog.Upsert(r.Context(), court)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func (s *Server) ListNotificationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := queryInt(r, "limit", 0)
		if err != nil {
			writeError(w, err)
			return
		}
		memberID := principal(r).MemberID
		list, err := s.Inbox.List(r.Context(), memberID, r.URL.Query().Get("unread") == "true", limit)
		if err != nil {
			writeError(w, err)
			return
		}
		unread, err := s.Inbox.UnreadCount(r.Context(), memberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list, "unread": unread})
	}
}

func (s *Server) MarkReadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Inbox.MarkRead(r.Context(), principal(r).MemberID, r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) MarkAllReadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.Inbox.MarkAllRead(r.Context(), principal(r).MemberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"updated": n})
	}
}

// BroadcastHandler sends an announcement to everyone, or to one room.
func (s *Server) BroadcastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := principal(r).Require(identity.RoleAdmin); err != nil {
			writeError(w, err)
			return
		}
		var req struct {
			Text  string         `json:"text"`
			Level notifier.Level `json:"level"`
			Link  string         `json:"link"`
			Room  string         `json:"room"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, apperr.Validationf("text is required"))
			return
		}
		e := events.Event{
			Type:       events.Announcement,
			Broadcast:  true,
			Room:       req.Room,
			Text:       req.Text,
			Level:      req.Level,
			Link:       req.Link,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.Publisher.Publish(r.Context(), e); err != nil {
			log.Error("Failed to publish announcement", "error", err)
			http.Error(w, "Failed to publish announcement", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (s *Server) RunSweeperHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := principal(r).Require(identity.RoleAdmin); err != nil {
			writeError(w, err)
			return
		}
		if s.Sweeper == nil {
			http.Error(w, "Sweeper is disabled", http.StatusServiceUnavailable)
			return
		}
		job := sweeper.Job(r.PathValue("job"))
		if err := s.Sweeper.RunOnce(r.Context(), job); err != nil {
			if errors.Is(err, sweeper.ErrUnknownJob) {
				writeError(w, apperr.NotFoundf("sweeper job %s", job))
				return
			}
			writeError(w, err)
			return
		}
		log.Info("Ran sweeper job on demand", "job", job, "by", principal(r).MemberID)
		w.Write([]byte("OK"))
	}
}
