package schedule

import (
	"github.com/yourorg/maintenance-sync/internal/model"
)

// Maintenance item priorities derived from an evaluation
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// ItemPriority classifies one evaluated item: high when due on any axis,
// medium when upcoming on any axis, low otherwise.
func ItemPriority(eval model.MaintenanceEvaluation) string {
	switch {
	case IsDue(eval):
		return PriorityHigh
	case IsUpcoming(eval):
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// HealthScore computes a vehicle's 0-100 health percentage from its evaluated
// maintenance items: each due item costs DueWeight points, each upcoming item
// UpcomingWeight, clamped to [0,100]. An empty item set scores 100, since no
// scheduled maintenance means no known risk. The function is monotonic
// non-increasing in the due and upcoming counts.
func HealthScore(items []model.MaintenanceEvaluation, policy Policy) int {
	score := 100
	for _, item := range items {
		switch ItemPriority(item) {
		case PriorityHigh:
			score -= policy.DueWeight
		case PriorityMedium:
			score -= policy.UpcomingWeight
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
