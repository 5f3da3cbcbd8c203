// Package api pkg/api/handlers.go
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	httpx "github.com/mfreeman451/netmon/pkg/http"
)

const statusSuccess = "success"

// queryInt parses an integer query parameter, falling back to def when the
// parameter is absent or not a positive integer.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}

	return v
}

// windowStart converts an hours parameter into the start of the query window.
func windowStart(hours int) time.Time {
	return time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
}

func (s *APIServer) getStatus(w http.ResponseWriter, r *http.Request) {
	if !s.client.Allow() {
		httpx.RespondErrorString(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	payload, err := s.client.Poll(r.Context())
	if err != nil {
		log.Printf("Error fetching live status: %v", err)
		httpx.RespondError(w, http.StatusBadGateway, err)

		return
	}

	httpx.RespondJSON(w, http.StatusOK, payload)
}

func (s *APIServer) fetchNow(w http.ResponseWriter, r *http.Request) {
	if !s.client.Allow() {
		httpx.RespondErrorString(w, http.StatusTooManyRequests, "Too many requests")
		return
	}

	if _, err := s.fetcher.FetchNow(r.Context()); err != nil {
		log.Printf("Error on manual fetch: %v", err)
		httpx.RespondError(w, http.StatusServiceUnavailable, err)

		return
	}

	httpx.RespondJSON(w, http.StatusOK, MessageResponse{
		Status:    statusSuccess,
		Message:   "Data fetched and saved",
		Timestamp: time.Now().UTC(),
	})
}

func (s *APIServer) getHistory(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultHistoryLimit)
	hours := queryInt(r, "hours", defaultWindowHours)
	since := windowStart(hours)

	total, err := s.store.CountStatusSnapshots(since)
	if err != nil {
		log.Printf("Error counting status history: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)

		return
	}

	records, err := s.store.GetStatusHistory(since, offset, limit)
	if err != nil {
		log.Printf("Error fetching status history: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)

		return
	}

	pings, err := s.store.GetPingHistory(since, "", maxPingRecords)
	if err != nil {
		log.Printf("Error fetching ping history: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)

		return
	}

	events, err := s.store.GetEventsSince(since, maxWindowEvents)
	if err != nil {
		log.Printf("Error fetching events: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)

		return
	}

	httpx.RespondJSON(w, http.StatusOK, HistoryResponse{
		Status:  statusSuccess,
		Total:   total,
		Records: records,
		Ping:    pings,
		Events:  events,
		Source: SourceInfo{
			Host: s.source.Host,
			Port: s.source.Port,
		},
	})
}

func (s *APIServer) getPingHistory(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultWindowHours)
	target := r.URL.Query().Get("target")

	records, err := s.store.GetPingHistory(windowStart(hours), target, maxPingRecords)
	if err != nil {
		log.Printf("Error fetching ping history: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)

		return
	}

	httpx.RespondJSON(w, http.StatusOK, PingHistoryResponse{
		Status:  statusSuccess,
		Records: records,
	})
}

func (s *APIServer) getEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultEventsLimit)
	eventType := r.URL.Query().Get("type")

	records, err := s.store.GetEvents(limit, eventType)
	if err != nil {
		log.Printf("Error fetching events: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)

		return
	}

	httpx.RespondJSON(w, http.StatusOK, EventsResponse{
		Status:  statusSuccess,
		Records: records,
	})
}

func (s *APIServer) getStatsSummary(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultWindowHours)

	summary, err := s.store.GetSummaryStats(windowStart(hours))
	if err != nil {
		log.Printf("Error computing summary stats: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)

		return
	}

	summary.MonitoringHours = hours

	httpx.RespondJSON(w, http.StatusOK, SummaryResponse{
		Status:  statusSuccess,
		Summary: summary,
	})
}

func (s *APIServer) getRollups(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", defaultWindowHours)

	records, err := s.store.GetHourlyRollups(windowStart(hours), hours)
	if err != nil {
		log.Printf("Error fetching rollups: %v", err)
		httpx.RespondError(w, http.StatusInternalServerError, err)

		return
	}

	httpx.RespondJSON(w, http.StatusOK, RollupsResponse{
		Status:  statusSuccess,
		Records: records,
	})
}

func (s *APIServer) getHealth(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.Ping(); err != nil {
		httpx.RespondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})

		return
	}

	httpx.RespondJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}
