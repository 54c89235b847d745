package serialmux

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	EventTypeReading = "reading"
	EventTypeStatus  = "status"
	EventTypeUnknown = "unknown"
)

// ErrMalformedReading is wrapped by every ParseReading failure.
var ErrMalformedReading = errors.New("malformed reading")

// Reading is one gyro sample as emitted by the board: the z-axis rate and the
// board's microsecond clock at sampling time.
type Reading struct {
	GyroZ        float64 `json:"gyro_z"`
	DeviceMicros int64   `json:"device_micros"`
}

// ClassifyPayload inspects a device line and returns its event type. Status
// lines are JSON objects; readings start with a number.
func ClassifyPayload(payload string) string {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "{") {
		return EventTypeStatus
	}
	if payload == "" {
		return EventTypeUnknown
	}
	if c := payload[0]; c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9') {
		return EventTypeReading
	}
	return EventTypeUnknown
}

// ParseReading parses a "<gyro_z>,<device_micros>" line. The timestamp field
// may be omitted, in which case DeviceMicros is 0.
func ParseReading(line string) (Reading, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) == 0 || len(fields) > 2 || fields[0] == "" {
		return Reading{}, fmt.Errorf("%w: %q", ErrMalformedReading, line)
	}

	gz, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: gyro value %q: %v", ErrMalformedReading, fields[0], err)
	}
	if math.IsNaN(gz) || math.IsInf(gz, 0) {
		return Reading{}, fmt.Errorf("%w: non-finite gyro value %q", ErrMalformedReading, fields[0])
	}

	r := Reading{GyroZ: gz}
	if len(fields) == 2 {
		us, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: timestamp %q: %v", ErrMalformedReading, fields[1], err)
		}
		r.DeviceMicros = us
	}
	return r, nil
}
