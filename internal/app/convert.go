package app

import (
	"github.com/example/shiftdesk/internal/core/events"
	"github.com/example/shiftdesk/internal/core/ledger"
	"github.com/example/shiftdesk/internal/core/shift"
	"github.com/example/shiftdesk/internal/ports/secondary"
)

func recordToSession(r *secondary.ShiftRecord) *shift.Session {
	if r == nil {
		return nil
	}
	return &shift.Session{
		ID:           r.ID,
		EmployeeID:   r.EmployeeID,
		EmployeeName: r.EmployeeName,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Status:       shift.Status(r.Status),
		OpeningCash:  r.OpeningCash,
		ClosingCash:  r.ClosingCash,
		Notes:        r.Notes,
	}
}

func recordToChange(r *secondary.ShiftChangeRecord) *shift.Change {
	if r == nil {
		return nil
	}
	return &shift.Change{
		ID:                 r.ID,
		PreviousShiftID:    r.PreviousShiftID,
		NewShiftID:         r.NewShiftID,
		Timestamp:          r.ChangedAt,
		HandoverNotes:      r.HandoverNotes,
		CashTransferred:    r.CashTransferred,
		PendingIssues:      r.PendingIssues,
		OutgoingEmployeeID: r.OutgoingEmployeeID,
		IncomingEmployeeID: r.IncomingEmployeeID,
		ChangeType:         shift.ChangeType(r.ChangeType),
		SupervisorID:       r.SupervisorID,
		SupervisorApproved: r.SupervisorApproved,
	}
}

func changeToRecord(c shift.Change) *secondary.ShiftChangeRecord {
	return &secondary.ShiftChangeRecord{
		ID:                 c.ID,
		PreviousShiftID:    c.PreviousShiftID,
		NewShiftID:         c.NewShiftID,
		ChangedAt:          c.Timestamp,
		HandoverNotes:      c.HandoverNotes,
		CashTransferred:    c.CashTransferred,
		PendingIssues:      c.PendingIssues,
		OutgoingEmployeeID: c.OutgoingEmployeeID,
		IncomingEmployeeID: c.IncomingEmployeeID,
		ChangeType:         string(c.ChangeType),
		SupervisorID:       c.SupervisorID,
		SupervisorApproved: c.SupervisorApproved,
	}
}

func recordToEntry(r *secondary.LedgerEntryRecord) *ledger.Entry {
	if r == nil {
		return nil
	}
	return &ledger.Entry{
		ID:             r.ID,
		VehicleNumber:  r.VehicleNumber,
		VehicleType:    r.VehicleType,
		TransportName:  r.TransportName,
		DriverName:     r.DriverName,
		EntryTime:      r.EntryTime,
		ExitTime:       r.ExitTime,
		Fee:            r.Fee,
		PaymentTime:    r.PaymentTime,
		PaymentMode:    r.PaymentMode,
		PaymentStatus:  ledger.PaymentStatus(r.PaymentStatus),
		ShiftSessionID: r.ShiftSessionID,
	}
}

func shiftPayload(s *shift.Session, reason string) events.ShiftPayload {
	return events.ShiftPayload{
		ShiftID:      s.ID,
		EmployeeID:   s.EmployeeID,
		EmployeeName: s.EmployeeName,
		Status:       string(s.Status),
		OpeningCash:  s.OpeningCash,
		ClosingCash:  s.ClosingCash,
		Reason:       reason,
	}
}
