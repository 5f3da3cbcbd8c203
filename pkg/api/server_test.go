package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mfreeman451/netmon/pkg/collector"
	"github.com/mfreeman451/netmon/pkg/config"
	"github.com/mfreeman451/netmon/pkg/db"
)

var errStore = errors.New("store failure")

type stubFetcher struct {
	payload *collector.Payload
	err     error
	calls   int
}

func (f *stubFetcher) FetchNow(context.Context) (*collector.Payload, error) {
	f.calls++
	return f.payload, f.err
}

func newDeviceServer(t *testing.T, handler http.HandlerFunc) config.SourceConfig {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return config.SourceConfig{Host: u.Hostname(), Port: port}
}

func newTestServer(store db.Service, fetcher Fetcher, source config.SourceConfig) *APIServer {
	if source.Host == "" {
		source = config.SourceConfig{Host: "127.0.0.1", Port: 8080}
	}

	return NewAPIServer(store, collector.NewClient(source), fetcher, source)
}

func doRequest(t *testing.T, s *APIServer, path string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	return rec
}

func TestGetHealth(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().Ping().Return(nil)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestGetHealthStoreDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().Ping().Return(errStore)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Error, "store failure")
}

func TestGetEventsDefaults(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetEvents(defaultEventsLimit, "").Return([]db.NetworkEvent{
		{ID: 1, EventType: "pppoe_up", Message: "PPPoE connection established"},
	}, nil)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/api/events")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "success", resp.Status)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "pppoe_up", resp.Records[0].EventType)
}

func TestGetEventsTypeAndLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetEvents(10, "wan_down").Return([]db.NetworkEvent{}, nil)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/api/events?limit=10&type=wan_down")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()

	var resp EventsResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Empty(t, resp.Records)
	assert.Contains(t, body, `"records":[]`)
}

func TestGetHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	now := time.Now().UTC()

	store := db.NewMockService(ctrl)
	store.EXPECT().CountStatusSnapshots(gomock.Any()).Return(3, nil)
	store.EXPECT().GetStatusHistory(gomock.Any(), 0, defaultHistoryLimit).Return([]db.StatusSnapshot{
		{ID: 3, Timestamp: now, WANState: "up"},
	}, nil)
	store.EXPECT().GetPingHistory(gomock.Any(), "", maxPingRecords).Return([]db.PingSample{
		{ID: 1, Timestamp: now, Target: "8.8.8.8", Loss: 0},
	}, nil)
	store.EXPECT().GetEventsSince(gomock.Any(), maxWindowEvents).Return([]db.NetworkEvent{}, nil)

	source := config.SourceConfig{Host: "192.168.1.1", Port: 80}
	s := newTestServer(store, &stubFetcher{}, source)

	rec := doRequest(t, s, "/api/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "up", resp.Records[0].WANState)
	require.Len(t, resp.Ping, 1)
	assert.Equal(t, "192.168.1.1", resp.Source.Host)
	assert.Equal(t, 80, resp.Source.Port)
}

func TestGetHistoryPagination(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().CountStatusSnapshots(gomock.Any()).Return(250, nil)
	store.EXPECT().GetStatusHistory(gomock.Any(), 200, 50).Return([]db.StatusSnapshot{}, nil)
	store.EXPECT().GetPingHistory(gomock.Any(), "", maxPingRecords).Return([]db.PingSample{}, nil)
	store.EXPECT().GetEventsSince(gomock.Any(), maxWindowEvents).Return([]db.NetworkEvent{}, nil)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/api/history?offset=200&limit=50&hours=48")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 250, resp.Total)
	assert.Empty(t, resp.Records)
}

func TestGetHistoryStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().CountStatusSnapshots(gomock.Any()).Return(0, errStore)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/api/history")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "store failure")
}

func TestGetPingHistoryTarget(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetPingHistory(gomock.Any(), "1.1.1.1", maxPingRecords).Return([]db.PingSample{
		{ID: 7, Target: "1.1.1.1", Loss: 100},
	}, nil)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/api/ping_history?target=1.1.1.1&hours=6")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PingHistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "1.1.1.1", resp.Records[0].Target)
}

func TestGetStatsSummary(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	temp := 55.5

	store := db.NewMockService(ctrl)
	store.EXPECT().GetSummaryStats(gomock.Any()).Return(&db.SummaryStats{
		TotalRecords:    12,
		WANAvailability: 91.7,
		PacketLossRate:  2.5,
		AvgCPUTemp:      &temp,
	}, nil)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/api/stats/summary?hours=6")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SummaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 6, resp.Summary.MonitoringHours)
	assert.InDelta(t, 91.7, resp.Summary.WANAvailability, 0.001)
}

func TestGetStatsSummaryBadHoursFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().GetSummaryStats(gomock.Any()).Return(&db.SummaryStats{}, nil)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/api/stats/summary?hours=bogus")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SummaryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, defaultWindowHours, resp.Summary.MonitoringHours)
}

func TestGetRollups(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	hour := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

	store := db.NewMockService(ctrl)
	store.EXPECT().GetHourlyRollups(gomock.Any(), defaultWindowHours).Return([]db.HourlyRollup{
		{ID: 1, Hour: hour, PacketLossCount: 3},
	}, nil)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/api/rollups")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RollupsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, 3, resp.Records[0].PacketLossCount)
	assert.True(t, resp.Records[0].Hour.Equal(hour))
}

func TestGetStatusPassthrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)

	source := newDeviceServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/net/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"realtime": {"wan_state": "up", "ping": {}}}`))
	})

	s := newTestServer(store, &stubFetcher{}, source)

	rec := doRequest(t, s, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"wan_state":"up"`)
}

func TestGetStatusSourceDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)

	source := newDeviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	s := newTestServer(store, &stubFetcher{}, source)

	rec := doRequest(t, s, "/api/status")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestGetStatusRateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)

	source := newDeviceServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"realtime": {"wan_state": "up"}}`))
	})

	s := newTestServer(store, &stubFetcher{}, source)

	limited := false

	for i := 0; i < 5; i++ {
		rec := doRequest(t, s, "/api/status")
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}

	assert.True(t, limited, "expected a burst of requests to hit the rate limit")
}

func TestFetchNow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	fetcher := &stubFetcher{payload: &collector.Payload{}}

	s := newTestServer(store, fetcher, config.SourceConfig{})

	rec := doRequest(t, s, "/api/fetch_now")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fetcher.calls)

	var resp MessageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "success", resp.Status)
}

func TestFetchNowSourceFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	fetcher := &stubFetcher{err: collector.ErrSourceUnavailable}

	s := newTestServer(store, fetcher, config.SourceConfig{})

	rec := doRequest(t, s, "/api/fetch_now")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	store.EXPECT().Ping().Return(nil)

	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	rec := doRequest(t, s, "/health")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLiveBroadcast(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	rtt := 12.5
	s.Hub().Broadcast(db.StatusSnapshot{
		ID:        42,
		Timestamp: time.Now().UTC(),
		WANState:  "up",
		OpticalRx: &rtt,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var snapshot db.StatusSnapshot
	require.NoError(t, json.Unmarshal(message, &snapshot))
	assert.Equal(t, int64(42), snapshot.ID)
	assert.Equal(t, "up", snapshot.WANState)
}

func TestLiveConcurrentBroadcasts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := db.NewMockService(ctrl)
	s := newTestServer(store, &stubFetcher{}, config.SourceConfig{})

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool {
		return s.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	// The scheduled poll and a manual fetch may both store snapshots at the
	// same moment; their broadcasts must not corrupt the connection.
	var wg sync.WaitGroup

	for g := 0; g < 2; g++ {
		wg.Add(1)

		go func(id int64) {
			defer wg.Done()

			for i := 0; i < 200; i++ {
				s.Hub().Broadcast(db.StatusSnapshot{
					ID:        id,
					Timestamp: time.Now().UTC(),
					WANState:  "up",
				})
			}
		}(int64(g + 1))
	}

	wg.Wait()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// Every delivered frame must still be a complete, valid snapshot.
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var snapshot db.StatusSnapshot
	require.NoError(t, json.Unmarshal(message, &snapshot))
	assert.Equal(t, "up", snapshot.WANState)
}
