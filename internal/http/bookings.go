package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/booking"
)

type slotRequest struct {
	CourtID string    `json:"courtId"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// recurringRequest carries times of day as "HH:MM" in the given IANA zone.
type recurringRequest struct {
	CourtID   string   `json:"courtId"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Weekdays  []string `json:"weekdays"`
	Timezone  string   `json:"timezone"`
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func (req recurringRequest) toDomain(memberID string) (booking.RecurringRequest, error) {
	out := booking.RecurringRequest{CourtID: req.CourtID, MemberID: memberID, Location: time.UTC}
	if req.Timezone != "" {
		loc, err := time.LoadLocation(req.Timezone)
		if err != nil {
			return out, apperr.Validationf("unknown timezone %q", req.Timezone)
		}
		out.Location = loc
	}
	var err error
	if out.From, err = time.ParseInLocation(time.DateOnly, req.From, out.Location); err != nil {
		return out, apperr.Validationf("from must be a date (YYYY-MM-DD)")
	}
	if out.To, err = time.ParseInLocation(time.DateOnly, req.To, out.Location); err != nil {
		return out, apperr.Validationf("to must be a date (YYYY-MM-DD)")
	}
	if out.StartOfDay, err = clockOffset(req.StartTime); err != nil {
		return out, err
	}
	if out.EndOfDay, err = clockOffset(req.EndTime); err != nil {
		return out, err
	}
	for _, name := range req.Weekdays {
		day, ok := weekdays[strings.ToLower(name)[:min(3, len(name))]]
		if !ok {
			return out, apperr.Validationf("unknown weekday %q", name)
		}
		out.Weekdays = append(out.Weekdays, day)
	}
	return out, nil
}

// clockOffset turns "HH:MM" into the offset from midnight.
func clockOffset(hhmm string) (time.Duration, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, apperr.Validationf("time of day %q must be HH:MM", hhmm)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func (s *Server) HoldHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req slotRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		res, err := s.Bookings.Hold(r.Context(), req.CourtID, principal(r).MemberID, req.Start, req.End)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func (s *Server) ConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.Bookings.Confirm(r.Context(), r.PathValue("id"), principal(r).MemberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) DirectBookingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req slotRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		res, err := s.Bookings.CreateDirect(r.Context(), req.CourtID, principal(r).MemberID, req.Start, req.End)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func (s *Server) CancelBookingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.Bookings.Cancel(r.Context(), r.PathValue("id"), principal(r).MemberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) RecurringBookingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recurringRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		domainReq, err := req.toDomain(principal(r).MemberID)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := s.Bookings.CreateRecurring(r.Context(), domainReq)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func (s *Server) GetBookingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := s.Bookings.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		if res.MemberID != principal(r).MemberID {
			writeError(w, apperr.ErrNotOwner)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) ListBookingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.Bookings.ListByMember(r.Context(), principal(r).MemberID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CalendarHandler lists the occupied slots of a court between from and to.
func (s *Server) CalendarHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := queryTime(r, "from")
		if err != nil {
			writeError(w, err)
			return
		}
		to, err := queryTime(r, "to")
		if err != nil {
			writeError(w, err)
			return
		}
		list, err := s.Bookings.Calendar(r.Context(), r.PathValue("id"), from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
