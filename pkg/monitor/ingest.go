// Package monitor pkg/monitor/ingest.go normalization and the write path.
package monitor

import (
	"fmt"
	"log"
	"time"

	"github.com/mfreeman451/netmon/pkg/collector"
	"github.com/mfreeman451/netmon/pkg/db"
)

// eventTimeFormat is the fixed timestamp format the device uses in its
// events list.
const eventTimeFormat = "2006-01-02 15:04:05"

// Ingest validates a polled payload and commits one poll cycle's snapshot,
// ping samples and events as a single unit. A payload without the realtime
// section is skipped with a warning; that is not an error and the poll
// schedule continues normally.
func (s *Service) Ingest(payload *collector.Payload, now time.Time) error {
	if payload == nil || payload.Realtime == nil {
		log.Printf("Invalid data format, skipping save")
		return nil
	}

	obs := normalize(payload, now)

	if err := s.store.SaveObservation(obs); err != nil {
		return fmt.Errorf("failed to save observation: %w", err)
	}

	log.Printf("Saved status snapshot #%d (%d ping samples, %d events)",
		obs.Snapshot.ID, len(obs.Pings), len(obs.Events))

	s.notify(obs.Snapshot)

	return nil
}

// normalize maps the raw payload into record shapes, centralizing all
// default-filling: missing sub-objects zero their fields rather than
// failing the ingest.
func normalize(payload *collector.Payload, now time.Time) *db.Observation {
	realtime := payload.Realtime

	snapshot := db.StatusSnapshot{
		Timestamp: now.UTC(),
		WANState:  realtime.WANState,
		CPUTemp:   realtime.CPUTemp,
	}

	if realtime.WANErrors != nil {
		snapshot.RxErrors = realtime.WANErrors.RxErrors
		snapshot.TxErrors = realtime.WANErrors.TxErrors
		snapshot.RxDropped = realtime.WANErrors.RxDropped
		snapshot.TxDropped = realtime.WANErrors.TxDropped
	}

	if realtime.OpticalPower != nil {
		snapshot.OpticalRx = realtime.OpticalPower.Rx
		snapshot.OpticalTx = realtime.OpticalPower.Tx
	}

	if payload.Summary != nil {
		snapshot.PPPoEReconnectCount = payload.Summary.PPPoEReconnectCount
		snapshot.WANDownCount = payload.Summary.WANDownCount
	}

	obs := &db.Observation{Snapshot: snapshot}

	for target, result := range realtime.Ping {
		obs.Pings = append(obs.Pings, db.PingSample{
			Timestamp: now.UTC(),
			Target:    target,
			RTT:       result.RTT,
			Loss:      result.Loss,
		})
	}

	for _, event := range payload.Events {
		obs.Events = append(obs.Events, normalizeEvent(event, now))
	}

	return obs
}

// normalizeEvent parses the device's event timestamp. A timestamp that
// fails to parse never drops the event; the capture time substitutes and a
// warning is recorded.
func normalizeEvent(event collector.Event, now time.Time) db.NetworkEvent {
	eventTime := now.UTC()

	if event.Time != "" {
		parsed, err := time.Parse(eventTimeFormat, event.Time)
		if err != nil {
			log.Printf("Failed to parse event time %q, using capture time", event.Time)
		} else {
			eventTime = parsed.UTC()
		}
	}

	eventType := event.Type
	if eventType == "" {
		eventType = "unknown"
	}

	return db.NetworkEvent{
		Timestamp: now.UTC(),
		EventTime: eventTime,
		EventType: eventType,
		Message:   event.Message,
	}
}
