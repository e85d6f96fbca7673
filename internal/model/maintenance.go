package model

import (
	"time"
)

// Vehicle is the slice of the backend-owned vehicle record this engine needs:
// identity plus the current odometer reading
type Vehicle struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	CurrentKm int    `json:"current_km"`
}

// MaintenanceType is an immutable reference to a maintenance category
// owned by the catalog service
type MaintenanceType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// MaintenanceConfig holds the scheduling baseline for one (vehicle, type) pair.
// It is created on the first recorded service of that type and never mutated
// by subsequent records.
type MaintenanceConfig struct {
	TypeID          int     `json:"type_id"`
	VehicleID       int     `json:"vehicle_id"`
	FrequencyMonths int     `json:"frequency_months"`
	FrequencyKm     int     `json:"frequency_km"`
	EstimatedCost   float64 `json:"estimated_cost"`
}

// MaintenanceRecord represents one completed service entry
type MaintenanceRecord struct {
	ID          int       `json:"id"`
	VehicleID   int       `json:"vehicle_id"`
	TypeID      int       `json:"type_id"`
	ServiceDate time.Time `json:"service_date"`
	OdometerKm  int       `json:"odometer_km"`
	Cost        float64   `json:"cost"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordCompletedInput is the payload for logging a completed service.
// Config is mandatory when no MaintenanceConfig exists yet for the
// (vehicle, type) pair and ignored otherwise.
type RecordCompletedInput struct {
	TypeID      int          `json:"type_id" binding:"required"`
	ServiceDate time.Time    `json:"service_date" binding:"required,notfuture"`
	OdometerKm  int          `json:"odometer_km" binding:"min=0"`
	Cost        float64      `json:"cost" binding:"min=0"`
	Notes       string       `json:"notes,omitempty"`
	Config      *ConfigInput `json:"config,omitempty"`
}

// ConfigInput carries first-time configuration values for a maintenance type
type ConfigInput struct {
	FrequencyMonths int     `json:"frequency_months" binding:"required,gt=0"`
	FrequencyKm     int     `json:"frequency_km" binding:"required,gt=0"`
	EstimatedCost   float64 `json:"estimated_cost" binding:"min=0"`
}

// IntervalStatus describes how far one axis (time or distance) is from its
// threshold. Due and Upcoming are mutually exclusive within one axis.
type IntervalStatus struct {
	Remaining  int  `json:"remaining"`
	IsDue      bool `json:"is_due"`
	IsUpcoming bool `json:"is_upcoming"`
}

// MaintenanceEvaluation is the derived due/upcoming state for one maintenance
// type of one vehicle. It is recomputed on every evaluation and never persisted.
type MaintenanceEvaluation struct {
	TypeID        int            `json:"type_id"`
	TypeName      string         `json:"type_name"`
	LastDate      time.Time      `json:"last_date"`
	LastKm        int            `json:"last_km"`
	NextDate      time.Time      `json:"next_date"`
	NextKm        int            `json:"next_km"`
	TimeStatus    IntervalStatus `json:"time_status"`
	KmStatus      IntervalStatus `json:"km_status"`
	EstimatedCost float64        `json:"estimated_cost"`
}

// UnconfiguredType is a maintenance type with history but no scheduling
// baseline yet. It is a distinct state, not an error, and is excluded from
// due/upcoming computation.
type UnconfiguredType struct {
	TypeID   int    `json:"type_id"`
	TypeName string `json:"type_name"`
}

// VehicleScheduleSummary aggregates the evaluated maintenance state of one
// vehicle. Ephemeral, recomputed per request.
type VehicleScheduleSummary struct {
	VehicleID        int                     `json:"vehicle_id"`
	Items            []MaintenanceEvaluation `json:"items"`
	Unconfigured     []UnconfiguredType      `json:"unconfigured,omitempty"`
	TotalItems       int                     `json:"total_items"`
	DueItems         int                     `json:"due_items"`
	UpcomingItems    int                     `json:"upcoming_items"`
	HealthPercentage int                     `json:"health_percentage"`
	ProjectedCost    float64                 `json:"projected_cost"`
}

// FleetScheduleResult pairs one vehicle's summary with any evaluation error,
// so a fleet request can report partial failures without failing siblings
type FleetScheduleResult struct {
	VehicleID int                     `json:"vehicle_id"`
	Summary   *VehicleScheduleSummary `json:"summary,omitempty"`
	Error     string                  `json:"error,omitempty"`
}
