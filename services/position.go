package services

import "charge-queue/models"

// NextPosition returns the 1-based rank a new entry takes among the entries
// currently occupying positions: max(position)+1, or 1 for an empty queue.
func NextPosition(queued []*models.QueueEntry) int {
	max := 0
	for _, e := range queued {
		if e.Position > max {
			max = e.Position
		}
	}
	return max + 1
}

// EstimateWait returns the estimated wait in minutes for a queue position.
// The head only waits the fixed walk-up buffer; everyone behind it also waits
// out the average charging time of each entry ahead.
func EstimateWait(position, avgChargingMinutes, fixedMinimumWait int) int {
	if position <= 1 {
		return fixedMinimumWait
	}
	return (position-1)*avgChargingMinutes + fixedMinimumWait
}
