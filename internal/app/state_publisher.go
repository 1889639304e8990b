package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relabs-tech/calibration_wizard/internal/calibration"
)

// publishTimeout bounds every broker round trip made from a runner callback.
const publishTimeout = 2 * time.Second

// StatePublisher mirrors wizard status on a retained MQTT topic so that
// displays subscribed to the broker can render prompts.
type StatePublisher struct {
	client calibration.Publisher
	topic  string
}

func NewStatePublisher(client calibration.Publisher, topic string) *StatePublisher {
	return &StatePublisher{client: client, topic: topic}
}

// Publish sends st as JSON and waits for the broker, at most publishTimeout.
func (p *StatePublisher) Publish(st Status) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("json marshal error (status): %w", err)
	}
	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT publish %s: timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("MQTT publish error (%s): %w", p.topic, err)
	}
	return nil
}
