package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/maintenance-sync/internal/client"
	"github.com/yourorg/maintenance-sync/internal/event"
	"github.com/yourorg/maintenance-sync/internal/model"

	"go.uber.org/zap"
)

// ErrConfigRequired is returned when a record is logged for a maintenance
// type that has no configuration yet and the caller supplied none
var ErrConfigRequired = errors.New("first record for this maintenance type requires a configuration")

// RecordsStore is the collaborator contract for the backend-owned maintenance
// records service
type RecordsStore interface {
	GetVehicle(ctx context.Context, vehicleID int) (*model.Vehicle, error)
	ListTypesWithHistory(ctx context.Context, vehicleID int) ([]model.MaintenanceType, error)
	GetLatestRecord(ctx context.Context, vehicleID, typeID int) (*model.MaintenanceRecord, error)
	GetConfig(ctx context.Context, vehicleID, typeID int) (*model.MaintenanceConfig, error)
	CreateRecord(ctx context.Context, record *model.MaintenanceRecord, cfg *model.MaintenanceConfig) (*model.MaintenanceRecord, error)
	UpdateConfig(ctx context.Context, cfg *model.MaintenanceConfig) (*model.MaintenanceConfig, error)
}

// Service orchestrates per-vehicle maintenance evaluation and record logging
type Service struct {
	store     RecordsStore
	publisher *event.Publisher
	policy    Policy
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a new maintenance schedule service. publisher may be nil
// when event publishing is disabled.
func NewService(store RecordsStore, publisher *event.Publisher, policy Policy, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		policy:    policy,
		now:       time.Now,
		logger:    logger,
	}
}

// Evaluate computes the schedule summary for one vehicle. Types with history
// but no configuration are reported as unconfigured and excluded from the
// due/upcoming counts and the health score.
func (s *Service) Evaluate(ctx context.Context, vehicleID int) (*model.VehicleScheduleSummary, error) {
	vehicle, err := s.store.GetVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vehicle %d: %w", vehicleID, err)
	}

	types, err := s.store.ListTypesWithHistory(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list maintenance types for vehicle %d: %w", vehicleID, err)
	}

	reference := s.now()
	summary := &model.VehicleScheduleSummary{VehicleID: vehicleID}

	// Serialized within one vehicle: which configs to fetch depends on which
	// types have records
	for _, t := range types {
		record, err := s.store.GetLatestRecord(ctx, vehicleID, t.ID)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				// History listed the type but no record survives; treat the
				// same as never serviced
				summary.Unconfigured = append(summary.Unconfigured, model.UnconfiguredType{TypeID: t.ID, TypeName: t.Name})
				continue
			}
			return nil, fmt.Errorf("failed to fetch latest %s record for vehicle %d: %w", t.Name, vehicleID, err)
		}

		cfg, err := s.store.GetConfig(ctx, vehicleID, t.ID)
		if err != nil {
			if errors.Is(err, client.ErrNotFound) {
				summary.Unconfigured = append(summary.Unconfigured, model.UnconfiguredType{TypeID: t.ID, TypeName: t.Name})
				continue
			}
			return nil, fmt.Errorf("failed to fetch %s config for vehicle %d: %w", t.Name, vehicleID, err)
		}

		eval := EvaluateItem(*cfg, *record, vehicle.CurrentKm, reference, s.policy)
		eval.TypeName = t.Name
		summary.Items = append(summary.Items, eval)
	}

	summary.TotalItems = len(summary.Items)
	for _, item := range summary.Items {
		switch {
		case IsDue(item):
			summary.DueItems++
			summary.ProjectedCost += item.EstimatedCost
		case IsUpcoming(item):
			summary.UpcomingItems++
			summary.ProjectedCost += item.EstimatedCost
		}
	}
	summary.HealthPercentage = HealthScore(summary.Items, s.policy)

	if s.publisher != nil && summary.DueItems > 0 {
		s.publisher.PublishVehicleDue(ctx, summary)
	}

	return summary, nil
}

// EvaluateFleet evaluates several vehicles in parallel. Results come back in
// input order; a failure on one vehicle is reported in its slot without
// failing the others.
func (s *Service) EvaluateFleet(ctx context.Context, vehicleIDs []int) []model.FleetScheduleResult {
	results := make([]model.FleetScheduleResult, len(vehicleIDs))

	var wg sync.WaitGroup
	for i, id := range vehicleIDs {
		wg.Add(1)
		go func(i, id int) {
			defer wg.Done()
			summary, err := s.Evaluate(ctx, id)
			results[i] = model.FleetScheduleResult{VehicleID: id, Summary: summary}
			if err != nil {
				s.logger.Warn("Fleet evaluation failed for vehicle",
					zap.Int("vehicle_id", id),
					zap.Error(err))
				results[i].Error = err.Error()
			}
		}(i, id)
	}
	wg.Wait()

	return results
}

// RecordCompleted logs a completed service. The first record for a
// (vehicle, type) pair must carry a configuration, which becomes the pinned
// scheduling baseline; on later records any supplied configuration is
// ignored, so logging a service can never silently drift the schedule.
func (s *Service) RecordCompleted(ctx context.Context, vehicleID int, input *model.RecordCompletedInput) (*model.MaintenanceRecord, error) {
	if input.ServiceDate.IsZero() {
		return nil, errors.New("service date is required")
	}
	if input.OdometerKm < 0 {
		return nil, errors.New("odometer reading cannot be negative")
	}

	existing, err := s.store.GetConfig(ctx, vehicleID, input.TypeID)
	if err != nil && !errors.Is(err, client.ErrNotFound) {
		return nil, fmt.Errorf("failed to fetch config for vehicle %d type %d: %w", vehicleID, input.TypeID, err)
	}

	var newCfg *model.MaintenanceConfig
	if existing == nil {
		if input.Config == nil {
			return nil, ErrConfigRequired
		}
		if input.Config.FrequencyMonths <= 0 || input.Config.FrequencyKm <= 0 {
			return nil, errors.New("configuration frequencies must be positive")
		}
		if input.Config.EstimatedCost < 0 {
			return nil, errors.New("estimated cost cannot be negative")
		}
		newCfg = &model.MaintenanceConfig{
			TypeID:          input.TypeID,
			VehicleID:       vehicleID,
			FrequencyMonths: input.Config.FrequencyMonths,
			FrequencyKm:     input.Config.FrequencyKm,
			EstimatedCost:   input.Config.EstimatedCost,
		}
	} else if input.Config != nil {
		s.logger.Debug("Ignoring configuration on already-configured type",
			zap.Int("vehicle_id", vehicleID),
			zap.Int("type_id", input.TypeID))
	}

	record := &model.MaintenanceRecord{
		VehicleID:   vehicleID,
		TypeID:      input.TypeID,
		ServiceDate: input.ServiceDate,
		OdometerKm:  input.OdometerKm,
		Cost:        input.Cost,
		Notes:       input.Notes,
	}

	created, err := s.store.CreateRecord(ctx, record, newCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create maintenance record: %w", err)
	}

	if s.publisher != nil {
		s.publisher.PublishRecordCompleted(ctx, created)
	}

	return created, nil
}

// Reconfigure replaces the scheduling baseline for an already-configured
// maintenance type. This is the only path that changes frequencies after the
// first record pinned them.
func (s *Service) Reconfigure(ctx context.Context, vehicleID, typeID int, input *model.ConfigInput) (*model.MaintenanceConfig, error) {
	if input.FrequencyMonths <= 0 || input.FrequencyKm <= 0 {
		return nil, errors.New("configuration frequencies must be positive")
	}
	if input.EstimatedCost < 0 {
		return nil, errors.New("estimated cost cannot be negative")
	}

	cfg := &model.MaintenanceConfig{
		TypeID:          typeID,
		VehicleID:       vehicleID,
		FrequencyMonths: input.FrequencyMonths,
		FrequencyKm:     input.FrequencyKm,
		EstimatedCost:   input.EstimatedCost,
	}

	updated, err := s.store.UpdateConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to update config for vehicle %d type %d: %w", vehicleID, typeID, err)
	}
	return updated, nil
}

// WithClock overrides the reference time source, for tests and simulation
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
