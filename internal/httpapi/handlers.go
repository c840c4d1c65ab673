package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/shiftdesk/internal/core/ledger"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/primary"
)

// Shifts

func (s *Server) handleStartShift(w http.ResponseWriter, r *http.Request) {
	var req primary.StartShiftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.svc.Shifts.StartShift(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleListShifts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	shifts, err := s.svc.Shifts.ListShifts(r.Context(), primary.ListShiftsRequest{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if shifts == nil {
		shifts = []*shift.Session{}
	}
	writeJSON(w, http.StatusOK, shifts)
}

func (s *Server) handleActiveShift(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Shifts.GetActiveShift(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: "no_active_shift", Message: "no shift is active"}})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetShift(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Shifts.GetShift(r.Context(), chi.URLParam(r, "shiftID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndShift(w http.ResponseWriter, r *http.Request) {
	var req primary.EndShiftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.ShiftID = chi.URLParam(r, "shiftID")
	sess, err := s.svc.Shifts.EndShift(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEmergencyEnd(w http.ResponseWriter, r *http.Request) {
	var req primary.EmergencyEndRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.ShiftID = chi.URLParam(r, "shiftID")
	sess, err := s.svc.Shifts.EmergencyEnd(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Reports.GenerateReport(r.Context(), chi.URLParam(r, "shiftID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleValidateLinking(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Linkage.ValidateShiftLinking(r.Context(), chi.URLParam(r, "shiftID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleLiveStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Linkage.GetLiveStats(r.Context(), chi.URLParam(r, "shiftID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Handovers

func (s *Server) handleHandover(w http.ResponseWriter, r *http.Request) {
	var req primary.HandoverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.CurrentShiftID = chi.URLParam(r, "shiftID")
	res, err := s.svc.Handovers.ExecuteHandover(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResumeHandover(w http.ResponseWriter, r *http.Request) {
	var req primary.ResumeHandoverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Handovers.ResumeHandover(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListHandovers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	changes, err := s.svc.Handovers.ListChanges(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if changes == nil {
		changes = []*shift.Change{}
	}
	writeJSON(w, http.StatusOK, changes)
}

// Linkage

func (s *Server) handleLinkSession(w http.ResponseWriter, r *http.Request) {
	var req primary.LinkSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Linkage.LinkParkingSession(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, linkStatus(res), res)
}

func (s *Server) handleLinkPayment(w http.ResponseWriter, r *http.Request) {
	var req primary.LinkPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Linkage.LinkPayment(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, linkStatus(res), res)
}

func (s *Server) handleLinkExit(w http.ResponseWriter, r *http.Request) {
	var req primary.ExitStatsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.svc.ExitQueue == nil {
		res, err := s.svc.Linkage.UpdateExitStatistics(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, linkStatus(res), res)
		return
	}
	if req.SessionID == "" || req.ShiftID == "" {
		writeJSON(w, http.StatusBadRequest, &primary.LinkResult{
			ErrorCode: primary.CodeInvalidRequest,
			Message:   "session_id and shift_id are required",
		})
		return
	}
	if !s.svc.ExitQueue.Enqueue(req) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{Code: "queue_full", Message: "exit statistics queue is full"}})
		return
	}
	writeJSON(w, http.StatusAccepted, &primary.LinkResult{Success: true, ShiftID: req.ShiftID, Message: "queued"})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Linkage.BulkReconcile(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Vehicles

func (s *Server) handleRecordEntry(w http.ResponseWriter, r *http.Request) {
	var req primary.RecordEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Ledger.RecordEntry(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleRecordExit(w http.ResponseWriter, r *http.Request) {
	var req primary.RecordExitRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	req.EntryID = chi.URLParam(r, "entryID")
	res, err := s.svc.Ledger.RecordExit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req primary.RecordPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.EntryID = chi.URLParam(r, "entryID")
	res, err := s.svc.Ledger.RecordPayment(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.svc.Ledger.GetEntry(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleListParked(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Ledger.ListParked(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFeeSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Ledger.FeeSchedule())
}
