package subconscious

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseHandler(t *testing.T, lines []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/runs/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}
}

func collect(events <-chan StreamEvent) []StreamEvent {
	var out []StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestStream(t *testing.T) {
	client := newTestClient(t, sseHandler(t, []string{
		`data: {"run_id":"run_s"}`,
		``,
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		``,
		`data: [DONE]`,
	}))

	events, err := client.Stream(context.Background(), RunParams{
		Engine: EngineTIMEdge,
		Input:  RunInput{Instructions: "Say hello."},
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 3)
	// The meta payload's run id sticks to every later event.
	assert.Equal(t, DeltaEvent{RunID: "run_s", Content: "Hel"}, got[0])
	assert.Equal(t, DeltaEvent{RunID: "run_s", Content: "lo"}, got[1])
	assert.Equal(t, DoneEvent{RunID: "run_s"}, got[2])
}

func TestStreamErrorEvent(t *testing.T) {
	client := newTestClient(t, sseHandler(t, []string{
		`data: {"runId":"run_s"}`,
		`data: {"choices":[{"delta":{"content":"par"}}]}`,
		`event: error`,
		`data: {"message":"engine overloaded","code":"overloaded"}`,
	}))

	events, err := client.Stream(context.Background(), RunParams{
		Engine: EngineTIMEdge,
		Input:  RunInput{Instructions: "x"},
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 2)
	assert.Equal(t, DeltaEvent{RunID: "run_s", Content: "par"}, got[0])
	assert.Equal(t, ErrorEvent{RunID: "run_s", Message: "engine overloaded", Code: "overloaded"}, got[1])
}

func TestStreamEventMarkerResets(t *testing.T) {
	// A non-error event marker switches error mode back off.
	client := newTestClient(t, sseHandler(t, []string{
		`event: message`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	}))

	events, err := client.Stream(context.Background(), RunParams{
		Engine: EngineTIMEdge,
		Input:  RunInput{Instructions: "x"},
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 2)
	assert.Equal(t, DeltaEvent{Content: "ok"}, got[0])
}

func TestStreamIgnoresNoise(t *testing.T) {
	client := newTestClient(t, sseHandler(t, []string{
		`: keepalive comment`,
		`data:`,
		`data: {"object":"unrelated"}`,
		`data: {"choices":[{"delta":{"content":"ok"}}]}`,
		`data: [DONE]`,
	}))

	events, err := client.Stream(context.Background(), RunParams{
		Engine: EngineTIMEdge,
		Input:  RunInput{Instructions: "x"},
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 2)
	assert.Equal(t, DeltaEvent{Content: "ok"}, got[0])
}

func TestStreamEOFWithoutTerminal(t *testing.T) {
	client := newTestClient(t, sseHandler(t, []string{
		`data: {"run_id":"run_s"}`,
		`data: {"choices":[{"delta":{"content":"partial"}}]}`,
	}))

	events, err := client.Stream(context.Background(), RunParams{
		Engine: EngineTIMEdge,
		Input:  RunInput{Instructions: "x"},
	})
	require.NoError(t, err)

	got := collect(events)
	require.Len(t, got, 2)
	assert.Equal(t, DoneEvent{RunID: "run_s"}, got[1])
}

func TestStreamHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"unauthorized","message":"bad key"}}`)
	})

	_, err := client.Stream(context.Background(), RunParams{
		Engine: EngineTIMEdge,
		Input:  RunInput{Instructions: "x"},
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "unauthorized", apiErr.Code)
}

func TestStreamValidatesParams(t *testing.T) {
	client, err := New("test-key")
	require.NoError(t, err)

	_, err = client.Stream(context.Background(), RunParams{})
	assert.Error(t, err)
}
