/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is the keeper's typed handle onto the monitor's HTTP API, the
// role the teacher's webserver.localClient plays for the instance manager
// talking to its own embedded server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a Client against the monitor reachable at baseURL
// (e.g. "https://monitor.example.com:8008").
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Error is the typed error a Client call returns for a non-2xx response,
// carrying the ErrorKind so the keeper's retry classifier (spec §5) can
// decide purely from this field.
type Error struct {
	Status int
	Kind   ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("monitor: %s (%s, HTTP %d)", e.Message, e.Kind, e.Status)
}

// Retryable reports whether the keeper's retry policy should treat this
// failure as transient (spec §7 "SQL / connectivity" vs. permanent
// "FSM violation"/"invariant" errors).
func (e *Error) Retryable() bool {
	return e.Status >= 500 || e.Kind == ErrorKindStaleGroup
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("while encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("while building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("while calling monitor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var body ErrorBody
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &Error{Status: resp.StatusCode, Kind: body.Kind, Message: body.Message}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Register calls POST /api/v1/register.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	var resp RegisterResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/register", req, &resp)
	return resp, err
}

// NodeActive calls POST /api/v1/nodes/{id}/active.
func (c *Client) NodeActive(ctx context.Context, nodeID int64, req HeartbeatRequest) (HeartbeatResponse, error) {
	var resp HeartbeatResponse
	path := fmt.Sprintf("/api/v1/nodes/%d/active", nodeID)
	err := c.do(ctx, http.MethodPost, path, req, &resp)
	return resp, err
}

// GetPrimary calls GET /api/v1/formations/{formation}/groups/{group}/primary.
func (c *Client) GetPrimary(ctx context.Context, formation string, groupID int64) (GetPrimaryResponse, error) {
	var resp GetPrimaryResponse
	path := fmt.Sprintf("/api/v1/formations/%s/groups/%d/primary", formation, groupID)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// GetOtherNodes calls GET /api/v1/nodes/{id}/others.
func (c *Client) GetOtherNodes(ctx context.Context, nodeID int64, state string) (GetOtherNodesResponse, error) {
	var resp GetOtherNodesResponse
	path := fmt.Sprintf("/api/v1/nodes/%d/others", nodeID)
	if state != "" {
		path += "?state=" + state
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// SetGroupSettings calls PUT /api/v1/formations/{formation}/settings.
func (c *Client) SetGroupSettings(ctx context.Context, formation string, numberSyncStandbys int) error {
	path := fmt.Sprintf("/api/v1/formations/%s/settings", formation)
	return c.do(ctx, http.MethodPut, path, SetGroupSettingsRequest{NumberSyncStandbys: numberSyncStandbys}, nil)
}

// RemoveNode calls DELETE /api/v1/nodes/{id}.
func (c *Client) RemoveNode(ctx context.Context, nodeID int64) error {
	path := fmt.Sprintf("/api/v1/nodes/%d", nodeID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListEvents calls GET /api/v1/formations/{formation}/events.
func (c *Client) ListEvents(ctx context.Context, formation string, limit int) ([]Event, error) {
	var resp []Event
	path := fmt.Sprintf("/api/v1/formations/%s/events?limit=%d", formation, limit)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// ListNodes calls GET /api/v1/formations/{formation}/groups/{group}/nodes,
// the full per-group member list `show state` renders.
func (c *Client) ListNodes(ctx context.Context, formation string, groupID int64) (ListNodesResponse, error) {
	var resp ListNodesResponse
	path := fmt.Sprintf("/api/v1/formations/%s/groups/%d/nodes", formation, groupID)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

// EnableMaintenance calls PUT /api/v1/nodes/{id}/maintenance.
func (c *Client) EnableMaintenance(ctx context.Context, nodeID int64) error {
	path := fmt.Sprintf("/api/v1/nodes/%d/maintenance", nodeID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// DisableMaintenance calls DELETE /api/v1/nodes/{id}/maintenance.
func (c *Client) DisableMaintenance(ctx context.Context, nodeID int64) error {
	path := fmt.Sprintf("/api/v1/nodes/%d/maintenance", nodeID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// PerformFailover calls POST /api/v1/formations/{formation}/groups/{group}/failover.
func (c *Client) PerformFailover(ctx context.Context, formation string, groupID int64) error {
	path := fmt.Sprintf("/api/v1/formations/%s/groups/%d/failover", formation, groupID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// PerformSwitchover calls POST /api/v1/formations/{formation}/groups/{group}/switchover.
func (c *Client) PerformSwitchover(ctx context.Context, formation string, groupID int64) error {
	path := fmt.Sprintf("/api/v1/formations/%s/groups/%d/switchover", formation, groupID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}
