package status

import "errors"

var (
	ErrStationUnavailable  = errors.New("station: inactive or closed")
	ErrQueueFull           = errors.New("queue: station queue is at capacity")
	ErrNoActiveReservation = errors.New("session: no waiting or reserved entry for user")
	ErrSessionInProgress   = errors.New("queue: charging in progress, stop the session instead")
	ErrNotFound            = errors.New("queue: no active entry found")
	ErrConcurrencyConflict = errors.New("queue: concurrent operation on station")
)
