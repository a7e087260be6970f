// Package boardctl is the operator CLI's interface layer: a thin HTTP
// client over the server's admin surface plus the styled terminal
// rendering.
package boardctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/robin-raq/collabboard/internal/application/roomservice"
	"github.com/robin-raq/collabboard/internal/domain/board"
)

// Client talks to a running collabboard server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for baseURL (e.g. "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

// Health is the /health response body.
type Health struct {
	Status       string `json:"status"`
	Rooms        int    `json:"rooms"`
	Persistence  string `json:"persistence"`
	Model        string `json:"model"`
	CacheRecipes int    `json:"cache_recipes"`
}

// RoomDetail is the /api/rooms/:room response body.
type RoomDetail struct {
	ID      string `json:"id"`
	Objects int    `json:"objects"`
	Dirty   bool   `json:"dirty"`
	State   string `json:"state"`
}

// AIResult is the /api/ai response body.
type AIResult struct {
	Message string             `json:"message"`
	Actions []board.ToolAction `json:"actions"`
	Cached  bool               `json:"cached"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	return &out, c.get(ctx, "/health", &out)
}

func (c *Client) Rooms(ctx context.Context) ([]roomservice.RoomInfo, error) {
	var out struct {
		Rooms []roomservice.RoomInfo `json:"rooms"`
	}
	return out.Rooms, c.get(ctx, "/api/rooms", &out)
}

func (c *Client) Room(ctx context.Context, roomID string) (*RoomDetail, error) {
	var out RoomDetail
	return &out, c.get(ctx, "/api/rooms/"+roomID, &out)
}

func (c *Client) Snapshot(ctx context.Context, roomID string) error {
	return c.post(ctx, "/api/rooms/"+roomID+"/snapshot", nil, nil)
}

func (c *Client) ClearCache(ctx context.Context) error {
	return c.post(ctx, "/api/cache/clear", nil, nil)
}

// Command sends one natural-language command through POST /api/ai.
func (c *Client) Command(ctx context.Context, boardID, message string) (*AIResult, error) {
	var out AIResult
	body := map[string]string{"message": message, "boardId": boardID}
	return &out, c.post(ctx, "/api/ai", body, &out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s (%d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("server: HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
