package db

import (
	"encoding/json"
	"time"
)

// StatusSnapshot is one point-in-time record of device health captured
// during a single poll. Counters are non-negative; optical and temperature
// fields are nil when the device did not report them.
type StatusSnapshot struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	WANState  string `json:"wan_state"`
	RxErrors  int    `json:"rx_errors"`
	TxErrors  int    `json:"tx_errors"`
	RxDropped int    `json:"rx_dropped"`
	TxDropped int    `json:"tx_dropped"`

	OpticalRx *float64 `json:"optical_rx"`
	OpticalTx *float64 `json:"optical_tx"`
	CPUTemp   *float64 `json:"cpu_temp"`

	// Rolling 24h counters copied verbatim from the device payload.
	PPPoEReconnectCount int `json:"pppoe_reconnect_count"`
	WANDownCount        int `json:"wan_down_count"`
}

// PingSample is one probe result for a single target within a poll cycle.
// RTT is nil when the probe did not complete.
type PingSample struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Target    string    `json:"target"`
	RTT       *float64  `json:"rtt"`
	Loss      int       `json:"loss"`
}

// NetworkEvent is one device-reported event. Timestamp is the ingestion
// time; EventTime is the device's own timestamp, falling back to the
// ingestion time when unparseable. Events are permanent history.
type NetworkEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	EventTime time.Time `json:"event_time"`
	EventType string    `json:"type"`
	Message   string    `json:"message"`
}

// HourlyRollup summarizes one calendar hour of raw samples. At most one
// rollup exists per hour-start; once created it is immutable.
type HourlyRollup struct {
	ID   int64     `json:"id"`
	Hour time.Time `json:"hour"`

	AvgPingRTT      *float64 `json:"avg_ping_rtt"`
	MaxPingRTT      *float64 `json:"max_ping_rtt"`
	MinPingRTT      *float64 `json:"min_ping_rtt"`
	PacketLossCount int      `json:"packet_loss_count"`

	PPPoEReconnectCount int `json:"pppoe_reconnect_count"`
	WANDownCount        int `json:"wan_down_count"`

	AvgCPUTemp *float64 `json:"avg_cpu_temp"`
	MaxCPUTemp *float64 `json:"max_cpu_temp"`
}

// Observation is the transactional write unit for one poll cycle: the
// snapshot plus its paired samples and events, committed together.
type Observation struct {
	Snapshot StatusSnapshot
	Pings    []PingSample
	Events   []NetworkEvent
}

// SummaryStats is the derived read view over a time window.
type SummaryStats struct {
	TotalRecords    int      `json:"total_records"`
	WANAvailability float64  `json:"wan_availability"`
	PacketLossRate  float64  `json:"packet_loss_rate"`
	AvgCPUTemp      *float64 `json:"avg_cpu_temp"`
	PPPoEEvents     int      `json:"pppoe_events"`
	WANEvents       int      `json:"wan_events"`
	MonitoringHours int      `json:"monitoring_hours"`
}

// opticalPowerJSON is the nested optical block of the wire shape.
type opticalPowerJSON struct {
	Rx *float64 `json:"rx"`
	Tx *float64 `json:"tx"`
}

// snapshotJSON is the nested wire shape for a StatusSnapshot, matching the
// grouping the device itself reports.
type snapshotJSON struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	WANState  string    `json:"wan_state"`
	WANErrors struct {
		RxErrors  int `json:"rx_errors"`
		TxErrors  int `json:"tx_errors"`
		RxDropped int `json:"rx_dropped"`
		TxDropped int `json:"tx_dropped"`
	} `json:"wan_errors"`
	OpticalPower *opticalPowerJSON `json:"optical_power"`
	CPUTemp      *float64          `json:"cpu_temp"`
	Summary      struct {
		PPPoEReconnectCount int `json:"pppoe_reconnect_count_24h"`
		WANDownCount        int `json:"wan_down_count_24h"`
	} `json:"summary"`
}

func (s StatusSnapshot) MarshalJSON() ([]byte, error) {
	var out snapshotJSON

	out.ID = s.ID
	out.Timestamp = s.Timestamp
	out.WANState = s.WANState
	out.WANErrors.RxErrors = s.RxErrors
	out.WANErrors.TxErrors = s.TxErrors
	out.WANErrors.RxDropped = s.RxDropped
	out.WANErrors.TxDropped = s.TxDropped
	out.CPUTemp = s.CPUTemp
	out.Summary.PPPoEReconnectCount = s.PPPoEReconnectCount
	out.Summary.WANDownCount = s.WANDownCount

	if s.OpticalRx != nil || s.OpticalTx != nil {
		out.OpticalPower = &opticalPowerJSON{Rx: s.OpticalRx, Tx: s.OpticalTx}
	}

	return json.Marshal(out)
}

func (s *StatusSnapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	s.ID = in.ID
	s.Timestamp = in.Timestamp
	s.WANState = in.WANState
	s.RxErrors = in.WANErrors.RxErrors
	s.TxErrors = in.WANErrors.TxErrors
	s.RxDropped = in.WANErrors.RxDropped
	s.TxDropped = in.WANErrors.TxDropped
	s.CPUTemp = in.CPUTemp
	s.PPPoEReconnectCount = in.Summary.PPPoEReconnectCount
	s.WANDownCount = in.Summary.WANDownCount

	s.OpticalRx = nil
	s.OpticalTx = nil

	if in.OpticalPower != nil {
		s.OpticalRx = in.OpticalPower.Rx
		s.OpticalTx = in.OpticalPower.Tx
	}

	return nil
}
