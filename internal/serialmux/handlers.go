package serialmux

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/banshee-data/motion.report/internal/monitoring"
)

var (
	stateMu sync.Mutex
	// currentState holds the latest status values reported by the board.
	currentState = map[string]any{}
)

// CurrentState returns a copy of the merged status values seen so far.
func CurrentState() map[string]any {
	stateMu.Lock()
	defer stateMu.Unlock()
	return maps.Clone(currentState)
}

// HandleStatus merges a JSON status line into the current state.
func HandleStatus(payload string) error {
	var values map[string]any
	if err := json.Unmarshal([]byte(payload), &values); err != nil {
		return fmt.Errorf("failed to unmarshal status JSON: %w", err)
	}

	stateMu.Lock()
	maps.Copy(currentState, values)
	stateMu.Unlock()

	monitoring.Logf("Status Line: %s", payload)
	return nil
}

// HandleLine dispatches a device line. Readings are passed to onReading;
// status lines update CurrentState and anything else is logged.
func HandleLine(payload string, onReading func(Reading) error) error {
	switch ClassifyPayload(payload) {
	case EventTypeReading:
		r, err := ParseReading(payload)
		if err != nil {
			return err
		}
		if onReading == nil {
			return nil
		}
		return onReading(r)
	case EventTypeStatus:
		if err := HandleStatus(payload); err != nil {
			return fmt.Errorf("failed to handle status line: %w", err)
		}
	default:
		monitoring.Logf("unknown event type: %s", payload)
	}
	return nil
}
