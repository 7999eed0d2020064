package statusapi

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/tradelog/tradelog/log"
	"github.com/tradelog/tradelog/option"

	E "github.com/sagernet/sing/common/exceptions"
	"github.com/sagernet/sing/common/json"

	"github.com/stretchr/testify/require"
)

type rejectingSink struct{}

func (rejectingSink) Write(*log.Event) error {
	return E.New("collector rejected event")
}

func (rejectingSink) Close() error {
	return nil
}

func startServer(t *testing.T, secret string, observable bool) (*Server, *log.Pipeline) {
	t.Helper()
	pipeline, err := log.New(log.Options{
		Options:    option.LogOptions{Level: "debug"},
		Observable: observable,
		Sinks: map[string]log.Sink{
			"memory":    log.NewMemorySink(),
			"rejecting": rejectingSink{},
		},
	})
	require.NoError(t, err)
	require.NoError(t, pipeline.Start())
	server, err := NewServer(context.Background(), log.Logger{}, pipeline, option.StatusAPIOptions{
		Listen: "127.0.0.1:0",
		Secret: secret,
	})
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		server.Close()
		pipeline.Close()
	})
	return server, pipeline
}

func get(t *testing.T, server *Server, path string, secret string) *http.Response {
	t.Helper()
	request, err := http.NewRequest(http.MethodGet, "http://"+server.Addr().String()+path, nil)
	require.NoError(t, err)
	if secret != "" {
		request.Header.Set("Authorization", "Bearer "+secret)
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	return response
}

func TestStats(t *testing.T) {
	server, pipeline := startServer(t, "", false)
	pipeline.Logger().Info("Hello {Name}", "world")

	response := get(t, server, "/stats", "")
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)
	var stats struct {
		State   string `json:"state"`
		Emitted uint64 `json:"emitted"`
		Sinks   []struct {
			Name     string `json:"name"`
			Enqueued uint64 `json:"enqueued"`
		} `json:"sinks"`
	}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&stats))
	require.Equal(t, "active", stats.State)
	require.GreaterOrEqual(t, stats.Emitted, uint64(1))
	require.Len(t, stats.Sinks, 2)

	response = get(t, server, "/sinks/memory", "")
	require.Equal(t, http.StatusOK, response.StatusCode)
	response.Body.Close()
	response = get(t, server, "/sinks/missing", "")
	require.Equal(t, http.StatusNotFound, response.StatusCode)
	response.Body.Close()
}

func TestAuthentication(t *testing.T) {
	server, _ := startServer(t, "s3cret", false)
	response := get(t, server, "/version", "")
	require.Equal(t, http.StatusUnauthorized, response.StatusCode)
	response.Body.Close()
	response = get(t, server, "/version", "wrong")
	require.Equal(t, http.StatusUnauthorized, response.StatusCode)
	response.Body.Close()
	response = get(t, server, "/version", "s3cret")
	require.Equal(t, http.StatusOK, response.StatusCode)
	response.Body.Close()
}

func TestDiagnosticsStream(t *testing.T) {
	server, pipeline := startServer(t, "", true)
	response := get(t, server, "/diagnostics", "")
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(response.Body).ReadString('\n')
		lines <- line
	}()
	pipeline.Logger().Error("Order {OrderID} rejected", "o-1")
	select {
	case line := <-lines:
		var message diagnosticMessage
		require.NoError(t, json.Unmarshal([]byte(line), &message))
		require.Equal(t, "rejecting", message.Sink)
		require.Equal(t, log.DiagnosticTransport.String(), message.Kind)
		require.Contains(t, message.Error, "collector rejected event")
	case <-time.After(5 * time.Second):
		t.Fatal("no diagnostic streamed")
	}
}

func TestDiagnosticsUnavailable(t *testing.T) {
	server, _ := startServer(t, "", false)
	response := get(t, server, "/diagnostics", "")
	defer response.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, response.StatusCode)
	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "diagnostics stream unavailable")
}
