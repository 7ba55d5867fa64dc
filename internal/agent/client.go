package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var defaultHTTPClient = &http.Client{
	// No overall timeout: reply streams are long-lived. Dials are bounded by
	// the default transport's dial timeout and by the request context.
	Timeout: 0,
}

// ReplyRequest is the body posted to the daemon's reply endpoint. Messages
// must already be filtered to the sendToLLM-eligible sequence.
type ReplyRequest struct {
	Messages       []Message `json:"messages"`
	SessionID      string    `json:"session_id"`
	WorkingDir     string    `json:"session_working_dir,omitempty"`
	SystemPromptID string    `json:"system_prompt_id,omitempty"`
}

// Client talks to the reasoning agent daemon over HTTP and SSE.
type Client struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
}

// NewClient creates a Client for the daemon at baseURL.
func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return defaultHTTPClient
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.SecretKey != "" {
		req.Header.Set("X-Secret-Key", c.SecretKey)
	}
}

// replyFrame is one SSE data payload from the reply endpoint.
type replyFrame struct {
	Type       string      `json:"type"`
	Message    *Message    `json:"message,omitempty"`
	Usage      *TokenUsage `json:"usage,omitempty"`
	Error      string      `json:"error,omitempty"`
	TokenLimit bool        `json:"token_limit,omitempty"`
}

// Reply opens a reply exchange and returns a stream of ordered events.
// The stream ends with io.EOF after the daemon's terminal frame; transport
// and daemon-reported failures surface as *Error from Recv.
func (c *Client) Reply(ctx context.Context, req ReplyRequest) (Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reply request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/reply", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create reply request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &Error{
			Message:    strings.TrimSpace(string(respBody)),
			StatusCode: resp.StatusCode,
		}
	}

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		defer resp.Body.Close()

		// A consumer that abandons the stream stops draining; sends must stay
		// cancellable or this goroutine pins the connection forever.
		send := func(event Event) bool {
			select {
			case events <- event:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				break
			}

			var frame replyFrame
			if err := json.Unmarshal([]byte(data), &frame); err != nil {
				// Skip malformed frames rather than killing the stream.
				continue
			}

			switch frame.Type {
			case "Message":
				if frame.Message != nil {
					if !send(Event{Type: EventMessage, Message: frame.Message}) {
						return ctx.Err()
					}
				}
			case "ConfirmationRequest":
				if frame.Message != nil {
					if !send(Event{Type: EventConfirmation, Message: frame.Message}) {
						return ctx.Err()
					}
				}
			case "Finish":
				if !send(Event{Type: EventFinish, Usage: frame.Usage}) {
					return ctx.Err()
				}
			case "Error":
				return &Error{Message: frame.Error, TokenLimit: frame.TokenLimit}
			}
		}
		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &Error{Message: err.Error()}
		}
		return nil
	}), nil
}

// SessionDetails fetches persisted metadata for a session, including
// accumulated token counts.
func (c *Client) SessionDetails(ctx context.Context, sessionID string) (*SessionDetails, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/sessions/"+sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}
	c.setHeaders(httpReq)

	client := c.httpClient()
	if client == defaultHTTPClient {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &Error{
			Message:    strings.TrimSpace(string(respBody)),
			StatusCode: resp.StatusCode,
		}
	}

	var details SessionDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("failed to decode session details: %w", err)
	}
	return &details, nil
}
