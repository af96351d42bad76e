package http

import (
	"errors"
	"net/http"
	"strconv"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/session"
)

func handleState(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func handleReload(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	if err := sess.Reload(r.Context()); err != nil {
		// A partial reload must not linger in the cache.
		s.sessions.drop(sess.UserID())
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func handleMetrics(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sess.Snapshot().Metrics())
}

func handleCashFlow(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	months := s.cashFlowMonths
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 120 {
			writeError(w, r, badRequest("months must be between 1 and 120", err))
			return
		}
		months = n
	}
	writeJSON(w, http.StatusOK, sess.Snapshot().CashFlow(s.today(), months))
}

func handleExpensesByCategory(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sess.Snapshot().ExpensesByCategory())
}

func handlePerformance(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, ok := sess.Investments().Find(id)
	if !ok {
		writeError(w, r, notFound("investment", id))
		return
	}
	writeJSON(w, http.StatusOK, core.InvestmentPerformance(inv))
}

// dateParam reads the optional ?date= override, defaulting to today.
func dateParam(s *Server, r *http.Request) (core.Date, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return s.today(), nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, badRequest("date must be YYYY-MM-DD", err)
	}
	return d, nil
}

// handleRecurringDue previews what a run on the given date would create
// without writing anything.
func handleRecurringDue(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	today, err := dateParam(s, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m := s.processor.Engine().ComputeDue(sess.UserID(), sess.Snapshot().Recurring, today)
	writeJSON(w, http.StatusOK, m)
}

// runDateParam is dateParam for writes. A run dated after today would move
// the markers into a month that has not started, silencing the definitions
// until then.
func runDateParam(s *Server, r *http.Request) (core.Date, error) {
	d, err := dateParam(s, r)
	if err != nil {
		return d, err
	}
	if d.After(s.today().Time) {
		return core.Date{}, badRequest("date must not be after today", nil)
	}
	return d, nil
}

func handleRecurringRun(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	today, err := runDateParam(s, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := sess.RunRecurring(r.Context(), today)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Recurring run requested",
		log.FieldDate, today.String(),
		log.FieldCreated, len(m.NewTransactions))
	writeJSON(w, http.StatusOK, m)
}

func handleImport(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	var data services.LegacyData
	if err := decodeJSON(w, r, &data); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := sess.ImportLegacy(r.Context(), data)
	if err != nil {
		if !errors.Is(err, services.ErrLedgerNotEmpty) && !errors.Is(err, services.ErrValidation) {
			s.sessions.drop(sess.UserID())
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
