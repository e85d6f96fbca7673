package schedule

import (
	"math"
	"time"

	"github.com/yourorg/maintenance-sync/internal/model"
)

// Overall status labels, in display precedence order. The label is a
// presentation tie-break only; both underlying axis flags stay available on
// the evaluation.
const (
	StatusDueByTime      = "due_by_time"
	StatusDueByKm        = "due_by_km"
	StatusUpcomingByTime = "upcoming_by_time"
	StatusUpcomingByKm   = "upcoming_by_km"
	StatusOK             = "ok"
)

// Policy holds the scheduling policy constants. The defaults reproduce the
// observed production behavior.
type Policy struct {
	UpcomingDaysWindow int
	UpcomingKmWindow   int
	DueWeight          int
	UpcomingWeight     int
}

// DefaultPolicy returns the production policy values
func DefaultPolicy() Policy {
	return Policy{
		UpcomingDaysWindow: 30,
		UpcomingKmWindow:   1000,
		DueWeight:          25,
		UpcomingWeight:     10,
	}
}

// EvaluateItem computes the due/upcoming state of one maintenance type for
// one vehicle. It is pure: deterministic given its inputs, no side effects,
// and safe to call with a stale or future reference time for simulation.
func EvaluateItem(cfg model.MaintenanceConfig, record model.MaintenanceRecord, currentKm int, reference time.Time, policy Policy) model.MaintenanceEvaluation {
	nextDate := record.ServiceDate.AddDate(0, cfg.FrequencyMonths, 0)
	nextKm := record.OdometerKm + cfg.FrequencyKm

	daysRemaining := int(math.Floor(nextDate.Sub(reference).Hours() / 24))
	kmRemaining := nextKm - currentKm

	return model.MaintenanceEvaluation{
		TypeID:        cfg.TypeID,
		LastDate:      record.ServiceDate,
		LastKm:        record.OdometerKm,
		NextDate:      nextDate,
		NextKm:        nextKm,
		TimeStatus:    intervalStatus(daysRemaining, policy.UpcomingDaysWindow),
		KmStatus:      intervalStatus(kmRemaining, policy.UpcomingKmWindow),
		EstimatedCost: cfg.EstimatedCost,
	}
}

// intervalStatus classifies one axis. Due and upcoming are mutually
// exclusive: a passed threshold is due, never also upcoming.
func intervalStatus(remaining, window int) model.IntervalStatus {
	due := remaining <= 0
	return model.IntervalStatus{
		Remaining:  remaining,
		IsDue:      due,
		IsUpcoming: !due && remaining <= window,
	}
}

// IsDue reports whether the item is due on either axis
func IsDue(eval model.MaintenanceEvaluation) bool {
	return eval.TimeStatus.IsDue || eval.KmStatus.IsDue
}

// IsUpcoming reports whether the item is upcoming on either axis and not due
func IsUpcoming(eval model.MaintenanceEvaluation) bool {
	return !IsDue(eval) && (eval.TimeStatus.IsUpcoming || eval.KmStatus.IsUpcoming)
}

// OverallStatus resolves the single display label for an evaluation.
// Precedence: due by time, due by km, upcoming by time, upcoming by km, ok.
func OverallStatus(eval model.MaintenanceEvaluation) string {
	switch {
	case eval.TimeStatus.IsDue:
		return StatusDueByTime
	case eval.KmStatus.IsDue:
		return StatusDueByKm
	case eval.TimeStatus.IsUpcoming:
		return StatusUpcomingByTime
	case eval.KmStatus.IsUpcoming:
		return StatusUpcomingByKm
	default:
		return StatusOK
	}
}
