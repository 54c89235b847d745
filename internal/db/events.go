package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.report/internal/detector"
)

// Event sources.
const (
	SourceAPI    = "api"
	SourceSerial = "serial"
)

// Event is one fired step or jump.
type Event struct {
	EventID    string          `json:"event_id"`
	Source     string          `json:"source"`
	Signal     detector.Signal `json:"signal"`
	Reading    float64         `json:"reading"`
	Mean       float64         `json:"mean"`
	StdDev     float64         `json:"stdev"`
	LatencyUs  int64           `json:"latency_us"`
	ProducedAt time.Time       `json:"produced_at"`
}

// Counts is the number of recorded steps and jumps.
type Counts struct {
	Steps int64 `json:"steps"`
	Jumps int64 `json:"jumps"`
}

// RecordEvent inserts e, assigning an EventID when it is empty, and returns
// the stored ID. Only steps and jumps are accepted.
func (db *DB) RecordEvent(e Event) (string, error) {
	if !e.Signal.Fired() {
		return "", fmt.Errorf("refusing to record %s event", e.Signal)
	}
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.ProducedAt.IsZero() {
		e.ProducedAt = time.Now()
	}

	_, err := db.Exec(
		`INSERT INTO motion_events (
			event_id, source, signal, reading, mean, stdev, latency_us, produced_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Source, int(e.Signal), e.Reading, e.Mean, e.StdDev,
		e.LatencyUs, e.ProducedAt.UnixMicro(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert motion event: %w", err)
	}
	return e.EventID, nil
}

// RecentEvents returns up to limit events, newest first.
func (db *DB) RecentEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT event_id, source, signal, reading, mean, stdev, latency_us, produced_at
		FROM motion_events ORDER BY produced_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e          Event
			signal     int
			producedUs int64
		)
		if err := rows.Scan(&e.EventID, &e.Source, &signal, &e.Reading, &e.Mean, &e.StdDev, &e.LatencyUs, &producedUs); err != nil {
			return nil, err
		}
		e.Signal = detector.Signal(signal)
		e.ProducedAt = time.UnixMicro(producedUs)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// EventCounts tallies steps and jumps for source, or for every source when
// source is empty.
func (db *DB) EventCounts(source string) (Counts, error) {
	var c Counts
	err := db.QueryRow(
		`SELECT
			COALESCE(SUM(CASE WHEN signal = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN signal = 2 THEN 1 ELSE 0 END), 0)
		FROM motion_events WHERE ? = '' OR source = ?`, source, source,
	).Scan(&c.Steps, &c.Jumps)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count motion events: %w", err)
	}
	return c, nil
}
