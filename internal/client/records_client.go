package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yourorg/maintenance-sync/internal/model"

	"go.uber.org/zap"
)

// ErrNotFound signals that the collaborator has no matching resource. It is
// a distinct outcome, not a transport failure: callers map it to the
// "unconfigured" state rather than retrying.
var ErrNotFound = errors.New("resource not found")

// RecordsClient handles communication with the Maintenance Records Service
type RecordsClient struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRecordsClient creates a new Maintenance Records Service client
func NewRecordsClient(baseURL, serviceKey string, timeout time.Duration, logger *zap.Logger) *RecordsClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RecordsClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// GetVehicle retrieves a vehicle's identity and current odometer reading
func (c *RecordsClient) GetVehicle(ctx context.Context, vehicleID int) (*model.Vehicle, error) {
	url := fmt.Sprintf("%s/api/v1/vehicles/%d", c.baseURL, vehicleID)

	var vehicle model.Vehicle
	if err := c.getJSON(ctx, url, &vehicle); err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ListTypesWithHistory retrieves the distinct maintenance types for which a
// vehicle has at least one recorded service
func (c *RecordsClient) ListTypesWithHistory(ctx context.Context, vehicleID int) ([]model.MaintenanceType, error) {
	url := fmt.Sprintf("%s/api/v1/vehicles/%d/maintenance/types", c.baseURL, vehicleID)

	var types []model.MaintenanceType
	if err := c.getJSON(ctx, url, &types); err != nil {
		if errors.Is(err, ErrNotFound) {
			// A vehicle with no history is an empty schedule, not a failure
			return nil, nil
		}
		return nil, err
	}
	return types, nil
}

// GetLatestRecord retrieves the most recent service record for a
// (vehicle, type) pair. Returns ErrNotFound when no record exists.
func (c *RecordsClient) GetLatestRecord(ctx context.Context, vehicleID, typeID int) (*model.MaintenanceRecord, error) {
	url := fmt.Sprintf("%s/api/v1/vehicles/%d/maintenance/%d/latest", c.baseURL, vehicleID, typeID)

	var record model.MaintenanceRecord
	if err := c.getJSON(ctx, url, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetConfig retrieves the scheduling configuration for a (vehicle, type)
// pair. Returns ErrNotFound when the type has never been configured.
func (c *RecordsClient) GetConfig(ctx context.Context, vehicleID, typeID int) (*model.MaintenanceConfig, error) {
	url := fmt.Sprintf("%s/api/v1/vehicles/%d/maintenance/%d/config", c.baseURL, vehicleID, typeID)

	var cfg model.MaintenanceConfig
	if err := c.getJSON(ctx, url, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateRecord persists a new maintenance record. When cfg is non-nil the
// records service also creates the first-time configuration for the type.
func (c *RecordsClient) CreateRecord(ctx context.Context, record *model.MaintenanceRecord, cfg *model.MaintenanceConfig) (*model.MaintenanceRecord, error) {
	url := fmt.Sprintf("%s/api/v1/vehicles/%d/maintenance", c.baseURL, record.VehicleID)

	payload := struct {
		Record *model.MaintenanceRecord `json:"record"`
		Config *model.MaintenanceConfig `json:"config,omitempty"`
	}{Record: record, Config: cfg}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Key", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to create maintenance record", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("records service returned status code %d", resp.StatusCode)
	}

	var created model.MaintenanceRecord
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateConfig replaces the scheduling configuration for a (vehicle, type)
// pair. This is the explicit re-configuration path; logging a record never
// goes through here.
func (c *RecordsClient) UpdateConfig(ctx context.Context, cfg *model.MaintenanceConfig) (*model.MaintenanceConfig, error) {
	url := fmt.Sprintf("%s/api/v1/vehicles/%d/maintenance/%d/config", c.baseURL, cfg.VehicleID, cfg.TypeID)

	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Key", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to update maintenance config", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("records service returned status code %d", resp.StatusCode)
	}

	var updated model.MaintenanceConfig
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// getJSON performs a GET request and decodes the response body into out
func (c *RecordsClient) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Service-Key", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to reach records service", zap.String("url", url), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("records service returned status code %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
