package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfreeman451/netmon/pkg/config"
)

const samplePayload = `{
	"realtime": {
		"wan_state": "up",
		"wan_errors": {"rx_errors": 1, "tx_errors": 2, "rx_dropped": 0, "tx_dropped": 0},
		"optical_power": {"rx": -18.2, "tx": 2.1},
		"cpu_temp": 54.5,
		"ping": {
			"8.8.8.8": {"rtt": 12.5, "loss": 0},
			"1.1.1.1": {"rtt": null, "loss": 100}
		}
	},
	"summary": {"pppoe_reconnect_count_24h": 3, "wan_down_count_24h": 1},
	"events": [
		{"time": "2024-01-01 10:14:00", "type": "pppoe-up", "message": "session established"}
	]
}`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	client := NewClient(config.SourceConfig{Host: u.Hostname(), Token: "test-token"})
	// Point the client at the test server's ephemeral port.
	client.url = srv.URL + "/net/status"

	return client
}

func TestPoll(t *testing.T) {
	var gotAuth string

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(samplePayload))
	})

	payload, err := client.Poll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth)
	require.NotNil(t, payload.Realtime)
	assert.Equal(t, "up", payload.Realtime.WANState)
	require.NotNil(t, payload.Realtime.WANErrors)
	assert.Equal(t, 1, payload.Realtime.WANErrors.RxErrors)
	require.NotNil(t, payload.Realtime.CPUTemp)
	assert.InDelta(t, 54.5, *payload.Realtime.CPUTemp, 0.001)

	require.Len(t, payload.Realtime.Ping, 2)
	require.NotNil(t, payload.Realtime.Ping["8.8.8.8"].RTT)
	assert.InDelta(t, 12.5, *payload.Realtime.Ping["8.8.8.8"].RTT, 0.001)
	assert.Nil(t, payload.Realtime.Ping["1.1.1.1"].RTT)
	assert.Equal(t, 100, payload.Realtime.Ping["1.1.1.1"].Loss)

	require.NotNil(t, payload.Summary)
	assert.Equal(t, 3, payload.Summary.PPPoEReconnectCount)
	require.Len(t, payload.Events, 1)
	assert.Equal(t, "pppoe-up", payload.Events[0].Type)
}

func TestPollMissingRealtime(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"summary": {"pppoe_reconnect_count_24h": 0, "wan_down_count_24h": 0}}`))
	})

	payload, err := client.Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, payload.Realtime)
}

func TestPollSourceUnavailable(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestPollTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := NewClient(config.SourceConfig{Host: "127.0.0.1", Port: 1})
	client.url = srv.URL + "/net/status"

	_, err := client.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestPollMalformedPayload(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestAllowRateLimit(t *testing.T) {
	client := NewClient(config.SourceConfig{Host: "192.168.1.1", Port: 8321})

	// Burst allows the first calls, then the limiter kicks in.
	assert.True(t, client.Allow())
	assert.True(t, client.Allow())
	assert.False(t, client.Allow())
}
