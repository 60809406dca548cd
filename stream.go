package subconscious

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// Stream creates a run and streams its output as server-sent events. The
// returned channel yields DeltaEvent values as text is generated, then
// exactly one DoneEvent or ErrorEvent, and is closed. Cancelling ctx stops
// the stream; the channel is closed without a terminal event in that case.
func (c *Client) Stream(ctx context.Context, params RunParams) (<-chan StreamEvent, error) {
	if err := c.validate.Struct(params); err != nil {
		return nil, fmt.Errorf("subconscious: invalid run params: %w", err)
	}

	req, err := c.streamRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subconscious: sending request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		buf := make([]byte, 4096)
		n, _ := resp.Body.Read(buf)
		return nil, apiErrorFrom(resp.StatusCode, buf[:n])
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		var (
			runID     string
			errorMode bool
		)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()

			// Event markers flag how to read the next data payload.
			if name, ok := strings.CutPrefix(line, "event:"); ok {
				errorMode = strings.TrimSpace(name) == "error"
				continue
			}

			payload, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			payload = strings.TrimSpace(payload)
			if payload == "" {
				continue
			}
			if payload == "[DONE]" {
				sendEvent(ctx, events, DoneEvent{RunID: runID})
				return
			}

			chunk := gjson.Parse(payload)

			if errorMode {
				msg := chunk.Get("message").String()
				if msg == "" {
					msg = payload
				}
				sendEvent(ctx, events, ErrorEvent{
					RunID:   runID,
					Message: msg,
					Code:    chunk.Get("code").String(),
				})
				return
			}

			// The meta payload announces the run id before any content.
			if id := firstString(chunk, "run_id", "runId"); id != "" {
				runID = id
				continue
			}

			if content := chunk.Get("choices.0.delta.content"); content.Exists() {
				if !sendEvent(ctx, events, DeltaEvent{RunID: runID, Content: content.String()}) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			sendEvent(ctx, events, ErrorEvent{RunID: runID, Message: err.Error()})
			return
		}
		// A stream that ends without a terminal marker still completed.
		if ctx.Err() == nil {
			sendEvent(ctx, events, DoneEvent{RunID: runID})
		}
	}()
	return events, nil
}

func (c *Client) streamRequest(ctx context.Context, params RunParams) (*http.Request, error) {
	raw, err := marshalBody(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/runs/stream", strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("subconscious: building request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	return req, nil
}

func firstString(chunk gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := chunk.Get(path); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// sendEvent delivers one event unless ctx is done first. Reports whether the
// caller should keep streaming.
func sendEvent(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
