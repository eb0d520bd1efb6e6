package serialmux

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localHostRequest creates a request that passes tsweb's loopback check.
func localHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func drain(ch chan string) []string {
	var out []string
	for {
		select {
		case l, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, l)
		default:
			return out
		}
	}
}

func TestMonitor_FansOutToSubscribers(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	lines := []string{"# vrduino imu", "0.1,0.2,0.3,0.0,9.8,0.1", `{"gyr":[0,0,0],"acc":[0,1,0]}`}
	port.AddLines(lines...)
	port.SetEOF()

	require.NoError(t, mux.Monitor(context.Background()))

	assert.Equal(t, lines, drain(a))
	assert.Equal(t, lines, drain(b))

	stats := mux.Stats()
	assert.Equal(t, int64(3), stats.Lines)
	assert.Equal(t, int64(0), stats.Dropped)
	assert.Equal(t, map[string]int64{LineComment: 1, LineSample: 1, LineJSON: 1}, stats.ByClass)
}

func TestMonitor_DropsForSlowSubscriber(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		port.AddLines("1,2,3,4,5,6")
	}
	port.SetEOF()
	require.NoError(t, mux.Monitor(context.Background()))

	assert.Len(t, drain(ch), subscriberBuffer)
	assert.Equal(t, int64(10), mux.Stats().Dropped)
}

func TestMonitor_ContextCancel(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	require.NoError(t, mux.Close())
}

func TestClose_ClosesSubscribersAndPort(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Close())
	_, ok := <-ch
	assert.False(t, ok, "subscriber channel should be closed")
	assert.True(t, port.IsClosed())

	// idempotent, and later subscribers get a closed channel
	require.NoError(t, mux.Close())
	_, late := mux.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	id, ch := mux.Subscribe()
	mux.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	mux.Unsubscribe(id) // unknown id is a no-op
}

func TestSendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	require.NoError(t, mux.SendCommand("stream on"))
	require.NoError(t, mux.SendCommand("rate 500\n"))
	assert.Equal(t, "stream on\nrate 500\n", port.WrittenData())

	boom := errors.New("unplugged")
	port.WriteError = boom
	assert.ErrorIs(t, mux.SendCommand("x"), boom)
}

func TestInitialize_SendsCommandsInOrder(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port, "format csv", "stream on")
	require.NoError(t, mux.Initialize())
	assert.Equal(t, "format csv\nstream on\n", port.WrittenData())

	port.WriteError = errors.New("unplugged")
	err := mux.Initialize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"format csv"`)
}

func TestAttachAdminRoutes_SendCommandAPI(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	tests := []struct {
		name   string
		method string
		form   url.Values
		want   int
	}{
		{"valid", http.MethodPost, url.Values{"command": {"stream on"}}, http.StatusOK},
		{"empty", http.MethodPost, url.Values{"command": {"  "}}, http.StatusBadRequest},
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := localHostRequest(tt.method, "/debug/send-command-api", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			httpMux.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, "stream on\n", port.WrittenData())
}

func TestAttachAdminRoutes_SerialStats(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	port.AddLines("1,2,3,4,5,6", "garbage")
	port.SetEOF()
	require.NoError(t, mux.Monitor(context.Background()))

	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)
	rec := httptest.NewRecorder()
	httpMux.ServeHTTP(rec, localHostRequest(http.MethodGet, "/debug/serial-stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, int64(2), stats.Lines)
	assert.Equal(t, int64(1), stats.ByClass[LineUnknown])
}

func TestAttachAdminRoutes_Tail(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	httpMux := http.NewServeMux()
	mux.AttachAdminRoutes(httpMux)

	srv := httptest.NewServer(httpMux)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/debug/tail", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	ping, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", ping)

	go func() { _ = mux.Monitor(ctx) }()
	port.AddLines("0.5,0,0,0,9.81,0")

	event, err := reader.ReadString('\n')
	for err == nil && strings.TrimSpace(event) == "" {
		event, err = reader.ReadString('\n')
	}
	require.NoError(t, err)
	assert.Equal(t, "event: sample\n", event)
	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "data: 0.5,0,0,0,9.81,0\n", data)
}
