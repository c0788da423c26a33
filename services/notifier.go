package services

import (
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"charge-queue/models"
	"charge-queue/utils"
)

// PubNubNotifier publishes notification intents to each user's channel.
// Publishes go through a circuit breaker; a failed or skipped publish is
// logged and forgotten, never surfaced to the operation that produced it.
type PubNubNotifier struct {
	pubnub  *pubnub.PubNub
	breaker *utils.CircuitBreaker
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{
		pubnub:  pn,
		breaker: utils.NewCircuitBreaker("pubnub"),
	}
}

func (n *PubNubNotifier) Emit(event models.QueueEvent) {
	channel := fmt.Sprintf("user-%s", event.UserID)

	message := map[string]any{
		"type":       event.Type,
		"station_id": event.StationID,
	}
	for k, v := range event.Payload {
		message[k] = v
	}

	err := n.breaker.Execute(func() error {
		_, _, err := n.pubnub.Publish().
			Channel(channel).
			Message(message).
			Execute()
		return err
	})
	if err != nil {
		slog.Warn("notification publish failed",
			"type", event.Type,
			"user", event.UserID,
			"station", event.StationID,
			"error", err,
		)
	}
}
