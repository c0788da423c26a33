package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pocketbase/pocketbase/core"

	"charge-queue/models"
)

// PBStationService reads station attributes from the stations collection. It
// is the capacity oracle: the coordinator consumes these values but another
// system maintains them.
type PBStationService struct {
	app core.App
}

func NewPBStationService(app core.App) *PBStationService {
	return &PBStationService{app: app}
}

func (s *PBStationService) Capacity(ctx context.Context, stationID string) (*models.StationCapacity, error) {
	record, err := s.app.FindRecordById("stations", stationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &models.StationCapacity{
		StationID:          record.Id,
		IsActive:           record.GetBool("is_active"),
		IsOpen:             record.GetBool("is_open"),
		MaxQueueLength:     record.GetInt("max_queue_length"),
		AvgChargingMinutes: record.GetInt("avg_charging_minutes"),
	}, nil
}
