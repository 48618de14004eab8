package http

import (
	"net/http"

	"github.com/mauv0809/clubledger/internal/config"
	"github.com/mauv0809/clubledger/internal/metrics"
)

func NewServer(svc Services, metricsSvc metrics.Metrics, metricsHandler http.Handler, cfg config.Config) *Server {
	server := &Server{
		Services:       svc,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Router:         http.NewServeMux(),
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// Routes acting on behalf of a member add requireMember.
	member := func(h http.HandlerFunc) http.Handler {
		return Chain(h, paramsMiddleware, principalMiddleware, requireMember)
	}
	public := func(h http.HandlerFunc) http.Handler {
		return Chain(h, paramsMiddleware, principalMiddleware)
	}

	s.Router.Handle("GET /metrics", s.MetricsHandler)
	s.Router.Handle("GET /health", public(s.HealthCheckHandler()))
	s.Router.Handle("GET /ws", public(s.WebsocketHandler()))
	s.Router.Handle("POST /pubsub/push", Chain(s.PushHandler(), paramsMiddleware))

	s.Router.Handle("POST /members", member(s.CreateMemberHandler()))
	s.Router.Handle("GET /members", public(s.ListMembersHandler()))
	s.Router.Handle("GET /members/{id}", public(s.GetMemberHandler()))
	s.Router.Handle("GET /leaderboard", public(s.LeaderboardHandler()))

	s.Router.Handle("GET /wallet", member(s.WalletHandler()))
	s.Router.Handle("GET /wallet/entries", member(s.EntriesHandler()))
	s.Router.Handle("POST /wallet/deposits", member(s.RequestDepositHandler()))
	s.Router.Handle("GET /wallet/deposits/pending", member(s.PendingDepositsHandler()))
	s.Router.Handle("POST /wallet/deposits/{id}/approve", member(s.ApproveDepositHandler()))
	s.Router.Handle("POST /wallet/deposits/{id}/reject", member(s.RejectDepositHandler()))

	s.Router.Handle("GET /courts", public(s.ListCourtsHandler()))
	s.Router.Handle("PUT /courts", member(s.UpsertCourtHandler()))
	s.Router.Handle("GET /courts/{id}/calendar", public(s.CalendarHandler()))

	s.Router.Handle("GET /bookings", member(s.ListBookingsHandler()))
	s.Router.Handle("GET /bookings/{id}", member(s.GetBookingHandler()))
	s.Router.Handle("POST /bookings/hold", member(s.HoldHandler()))
	s.Router.Handle("POST /bookings/direct", member(s.DirectBookingHandler()))
	s.Router.Handle("POST /bookings/recurring", member(s.RecurringBookingHandler()))
	s.Router.Handle("POST /bookings/{id}/confirm", member(s.ConfirmHandler()))
	s.Router.Handle("POST /bookings/{id}/cancel", member(s.CancelBookingHandler()))

	s.Router.Handle("GET /challenges", member(s.ListChallengesHandler()))
	s.Router.Handle("POST /challenges", member(s.CreateChallengeHandler()))
	s.Router.Handle("GET /challenges/{id}", member(s.GetChallengeHandler()))
	s.Router.Handle("POST /challenges/{id}/accept", member(s.AcceptChallengeHandler()))
	s.Router.Handle("POST /challenges/{id}/result", member(s.ChallengeResultHandler()))
	s.Router.Handle("POST /challenges/{id}/cancel", member(s.CancelChallengeHandler()))

	s.Router.Handle("GET /tournaments", public(s.ListTournamentsHandler()))
	s.Router.Handle("POST /tournaments", member(s.CreateTournamentHandler()))
	s.Router.Handle("GET /tournaments/{id}", public(s.GetTournamentHandler()))
	s.Router.Handle("POST /tournaments/{id}/join", member(s.JoinTournamentHandler()))
	s.Router.Handle("GET /tournaments/{id}/participants", public(s.ParticipantsHandler()))
	s.Router.Handle("POST /tournaments/{id}/schedule", member(s.GenerateScheduleHandler()))
	s.Router.Handle("GET /tournaments/{id}/matches", public(s.MatchesHandler()))
	s.Router.Handle("POST /matches/{id}/result", member(s.MatchResultHandler()))

	s.Router.Handle("GET /notifications", member(s.ListNotificationsHandler()))
	s.Router.Handle("POST /notifications/{id}/read", member(s.MarkReadHandler()))
	s.Router.Handle("POST /notifications/read-all", member(s.MarkAllReadHandler()))
	s.Router.Handle("POST /notifications/broadcast", member(s.BroadcastHandler()))

	s.Router.Handle("POST /admin/sweeper/{job}", member(s.RunSweeperHandler()))

	slackVerified := slackVerifyMiddleware(s.Cfg.Slack.SigningSecret)
	s.Router.Handle("POST /slack/command/leaderboard", Chain(s.LeaderboardCommandHandler(), paramsMiddleware, slackVerified))
	s.Router.Handle("POST /slack/command/balance", Chain(s.BalanceCommandHandler(), paramsMiddleware, slackVerified))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
