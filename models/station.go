package models

// StationCapacity is the read-only view of a charging station supplied by the
// capacity oracle. The coordinator queries it per operation and never caches
// occupancy derived from it.
type StationCapacity struct {
	StationID          string `json:"station_id"`
	IsActive           bool   `json:"is_active"`
	IsOpen             bool   `json:"is_open"`
	MaxQueueLength     int    `json:"max_queue_length"`
	AvgChargingMinutes int    `json:"avg_charging_minutes"`
}

// Available reports whether the station accepts new queue entries.
func (c *StationCapacity) Available() bool {
	return c.IsActive && c.IsOpen
}
