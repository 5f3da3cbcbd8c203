// Package api pkg/api/types.go
package api

import (
	"time"

	"github.com/mfreeman451/netmon/pkg/db"
)

// SourceInfo identifies the monitored device in history responses.
type SourceInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type HistoryResponse struct {
	Status  string              `json:"status"`
	Total   int                 `json:"total"`
	Records []db.StatusSnapshot `json:"records"`
	Ping    []db.PingSample     `json:"ping"`
	Events  []db.NetworkEvent   `json:"events"`
	Source  SourceInfo          `json:"source"`
}

type PingHistoryResponse struct {
	Status  string          `json:"status"`
	Records []db.PingSample `json:"records"`
}

type EventsResponse struct {
	Status  string            `json:"status"`
	Records []db.NetworkEvent `json:"records"`
}

type RollupsResponse struct {
	Status  string             `json:"status"`
	Records []db.HourlyRollup `json:"records"`
}

type SummaryResponse struct {
	Status  string           `json:"status"`
	Summary *db.SummaryStats `json:"summary"`
}

type MessageResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}
