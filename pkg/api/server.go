// Package api pkg/api/server.go
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mfreeman451/netmon/pkg/collector"
	"github.com/mfreeman451/netmon/pkg/config"
	"github.com/mfreeman451/netmon/pkg/db"
	httpx "github.com/mfreeman451/netmon/pkg/http"
)

const (
	defaultWindowHours  = 24
	defaultHistoryLimit = 100
	defaultEventsLimit  = 50
	maxPingRecords      = 500
	maxWindowEvents     = 100
)

// Fetcher runs one on-demand poll-and-persist cycle.
type Fetcher interface {
	FetchNow(ctx context.Context) (*collector.Payload, error)
}

type APIServer struct {
	store   db.Service
	client  *collector.Client
	fetcher Fetcher
	source  config.SourceConfig
	router  *mux.Router
	hub     *SnapshotHub
}

func NewAPIServer(store db.Service, client *collector.Client, fetcher Fetcher, source config.SourceConfig) *APIServer {
	s := &APIServer{
		store:   store,
		client:  client,
		fetcher: fetcher,
		source:  source,
		router:  mux.NewRouter(),
		hub:     NewSnapshotHub(),
	}
	s.setupRoutes()

	return s
}

// Router returns the configured HTTP handler.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// Hub returns the websocket hub so snapshot listeners can be wired to it.
func (s *APIServer) Hub() *SnapshotHub {
	return s.hub
}

func (s *APIServer) setupRoutes() {
	s.router.Use(httpx.CommonMiddleware)

	s.router.HandleFunc("/api/status", s.getStatus).Methods("GET")
	s.router.HandleFunc("/api/history", s.getHistory).Methods("GET")
	s.router.HandleFunc("/api/ping_history", s.getPingHistory).Methods("GET")
	s.router.HandleFunc("/api/events", s.getEvents).Methods("GET")
	s.router.HandleFunc("/api/stats/summary", s.getStatsSummary).Methods("GET")
	s.router.HandleFunc("/api/rollups", s.getRollups).Methods("GET")
	s.router.HandleFunc("/api/fetch_now", s.fetchNow).Methods("GET")
	s.router.HandleFunc("/api/live", s.getLive).Methods("GET")
	s.router.HandleFunc("/health", s.getHealth).Methods("GET")
}
