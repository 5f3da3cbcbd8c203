package collector

// Payload is the JSON document served by the device's status endpoint.
// Optional fields are pointers so "absent" survives decoding; the normalizer
// owns default-filling.
type Payload struct {
	Realtime *Realtime `json:"realtime"`
	Summary  *Summary  `json:"summary"`
	Events   []Event   `json:"events"`
}

// Realtime is the live section of the payload. Missing sub-objects default
// to zero/absent downstream rather than failing the whole poll.
type Realtime struct {
	WANState     string                `json:"wan_state"`
	WANErrors    *WANErrors            `json:"wan_errors"`
	OpticalPower *OpticalPower         `json:"optical_power"`
	CPUTemp      *float64              `json:"cpu_temp"`
	Ping         map[string]PingResult `json:"ping"`
}

// WANErrors carries the interface error and drop counters.
type WANErrors struct {
	RxErrors  int `json:"rx_errors"`
	TxErrors  int `json:"tx_errors"`
	RxDropped int `json:"rx_dropped"`
	TxDropped int `json:"tx_dropped"`
}

// OpticalPower carries the receive/transmit power readings.
type OpticalPower struct {
	Rx *float64 `json:"rx"`
	Tx *float64 `json:"tx"`
}

// PingResult is one probe result keyed by target in the realtime ping map.
type PingResult struct {
	RTT  *float64 `json:"rtt"`
	Loss int      `json:"loss"`
}

// Summary carries the device's rolling 24h counters.
type Summary struct {
	PPPoEReconnectCount int `json:"pppoe_reconnect_count_24h"`
	WANDownCount        int `json:"wan_down_count_24h"`
}

// Event is one device-reported event. Time is the device's own timestamp
// string; parsing it is the normalizer's job.
type Event struct {
	Time    string `json:"time"`
	Type    string `json:"type"`
	Message string `json:"message"`
}
