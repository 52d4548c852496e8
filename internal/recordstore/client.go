// Package recordstore is a typed HTTP client over the external job-record
// API (spec §4.1, §6.2): CRUD plus filtered listing and counting, with an
// admin-token auth lifecycle acquired via an email/password handshake.
//
// The client is modelled after a PocketBase-shaped admin API: a login
// endpoint exchanges email/password for a bearer token, and every other
// call sends that token until it expires, at which point the client
// re-authenticates once and retries.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slidecaster/slidecaster/internal/jobs"
)

const (
	collection  = "jobs"
	defaultTimeout = 30 * time.Second
)

// Client is safe for concurrent use by many callers within one process
// (spec §4.1): the bearer token is guarded by a mutex and refreshed
// lazily on first use and on any 401.
type Client struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a Client for the record store at baseURL. No network call
// is made until the first operation.
func New(baseURL, email, password string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		password:   password,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type wireRecord struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	Status          string `json:"status"`
	Progress        int    `json:"progress"`
	ProgressMessage string `json:"progress_message"`
	CurrentStep     string `json:"current_step"`
	VideoPath       string `json:"video_path"`
	VideoSize       int64  `json:"video_size"`
	ErrorMessage    string `json:"error_message"`
	ClientIP        string `json:"client_ip"`
	StartedAt       string `json:"started_at"`
	CompletedAt     string `json:"completed_at"`
	ExpiresAt       string `json:"expires_at"`
	Created         string `json:"created"`
	Updated         string `json:"updated"`
}

// toRecord normalises the wire format's empty-string "unset" convention
// to absent (nil) for optional date fields (spec §4.1, §9).
func (w wireRecord) toRecord() (jobs.Record, error) {
	r := jobs.Record{
		ID:              w.ID,
		URL:             w.URL,
		Status:          jobs.Status(w.Status),
		Progress:        w.Progress,
		ProgressMessage: w.ProgressMessage,
		CurrentStep:     jobs.Step(w.CurrentStep),
		VideoPath:       w.VideoPath,
		VideoSize:       w.VideoSize,
		ErrorMessage:    w.ErrorMessage,
		ClientIP:        w.ClientIP,
	}

	var err error
	if r.StartedAt, err = parseOptionalTime(w.StartedAt); err != nil {
		return jobs.Record{}, fmt.Errorf("parse started_at: %w", err)
	}
	if r.CompletedAt, err = parseOptionalTime(w.CompletedAt); err != nil {
		return jobs.Record{}, fmt.Errorf("parse completed_at: %w", err)
	}
	if r.ExpiresAt, err = parseRequiredTime(w.ExpiresAt); err != nil {
		return jobs.Record{}, fmt.Errorf("parse expires_at: %w", err)
	}
	if r.Created, err = parseRequiredTime(w.Created); err != nil {
		return jobs.Record{}, fmt.Errorf("parse created: %w", err)
	}
	if r.Updated, err = parseRequiredTime(w.Updated); err != nil {
		return jobs.Record{}, fmt.Errorf("parse updated: %w", err)
	}
	return r, nil
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseRequiredTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseRequiredTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// CreateJob creates a pending job record and returns the full record as
// assigned by the store (spec §4.1).
func (c *Client) CreateJob(ctx context.Context, jobURL, clientIP string, expiresAt time.Time) (jobs.Record, error) {
	body := map[string]any{
		"url":        jobURL,
		"client_ip":  clientIP,
		"status":     jobs.StatusPending,
		"progress":   0,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}
	var out wireRecord
	if err := c.do(ctx, "create_job", http.MethodPost, "/api/collections/"+collection+"/records", body, &out); err != nil {
		return jobs.Record{}, err
	}
	return out.toRecord()
}

// GetJob reads one record by id.
func (c *Client) GetJob(ctx context.Context, id string) (jobs.Record, error) {
	var out wireRecord
	if err := c.do(ctx, "get_job", http.MethodGet, "/api/collections/"+collection+"/records/"+id, nil, &out); err != nil {
		return jobs.Record{}, err
	}
	return out.toRecord()
}

// UpdateJob applies a partial patch and returns the updated record.
func (c *Client) UpdateJob(ctx context.Context, id string, patch jobs.Patch) (jobs.Record, error) {
	body := patchToWire(patch)
	var out wireRecord
	if err := c.do(ctx, "update_job", http.MethodPatch, "/api/collections/"+collection+"/records/"+id, body, &out); err != nil {
		return jobs.Record{}, err
	}
	return out.toRecord()
}

// DeleteJob deletes a record unconditionally.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, "delete_job", http.MethodDelete, "/api/collections/"+collection+"/records/"+id, nil, nil)
}

// ListByStatus returns up to limit records with the given status, oldest
// first (spec §4.6's claim order).
func (c *Client) ListByStatus(ctx context.Context, status jobs.Status, limit int) ([]jobs.Record, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("status='%s'", status))
	q.Set("sort", "+created")
	q.Set("perPage", strconv.Itoa(limit))
	return c.list(ctx, "list_by_status", q)
}

// CountRecentByIP counts submissions from clientIP with created >= since,
// across all statuses (spec §8 S2: "Counts include all statuses").
func (c *Client) CountRecentByIP(ctx context.Context, clientIP string, since time.Time) (int, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("client_ip='%s' && created>='%s'", clientIP, since.UTC().Format(time.RFC3339)))
	q.Set("perPage", "1")
	return c.count(ctx, "count_recent_by_ip", q)
}

// CountByStatus counts records currently in the given status.
func (c *Client) CountByStatus(ctx context.Context, status jobs.Status) (int, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("status='%s'", status))
	q.Set("perPage", "1")
	return c.count(ctx, "count_by_status", q)
}

// ListExpired returns ids of records whose expires_at has passed.
func (c *Client) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf("expires_at<'%s'", now.UTC().Format(time.RFC3339)))
	q.Set("perPage", "500")
	records, err := c.list(ctx, "list_expired", q)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids, nil
}

type listResponse struct {
	Items      []wireRecord `json:"items"`
	TotalItems int          `json:"totalItems"`
}

func (c *Client) list(ctx context.Context, op string, q url.Values) ([]jobs.Record, error) {
	path := "/api/collections/" + collection + "/records?" + q.Encode()
	var out listResponse
	if err := c.do(ctx, op, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	records := make([]jobs.Record, 0, len(out.Items))
	for _, w := range out.Items {
		r, err := w.toRecord()
		if err != nil {
			return nil, newErr(KindServer, op, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (c *Client) count(ctx context.Context, op string, q url.Values) (int, error) {
	path := "/api/collections/" + collection + "/records?" + q.Encode()
	var out listResponse
	if err := c.do(ctx, op, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.TotalItems, nil
}

func patchToWire(p jobs.Patch) map[string]any {
	body := map[string]any{}
	if p.Status != nil {
		body["status"] = *p.Status
	}
	if p.Progress != nil {
		body["progress"] = *p.Progress
	}
	if p.ProgressMessage != nil {
		body["progress_message"] = *p.ProgressMessage
	}
	if p.CurrentStep != nil {
		body["current_step"] = *p.CurrentStep
	}
	if p.VideoPath != nil {
		body["video_path"] = *p.VideoPath
	}
	if p.VideoSize != nil {
		body["video_size"] = *p.VideoSize
	}
	if p.ErrorMessage != nil {
		body["error_message"] = *p.ErrorMessage
	}
	if p.StartedAt != nil {
		body["started_at"] = p.StartedAt.UTC().Format(time.RFC3339)
	}
	if p.CompletedAt != nil {
		body["completed_at"] = p.CompletedAt.UTC().Format(time.RFC3339)
	}
	return body
}

// do performs one authenticated round-trip, re-authenticating once on a
// 401 before giving up (spec §4.1).
func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	token, err := c.ensureToken(ctx, op)
	if err != nil {
		return err
	}

	status, respBody, err := c.roundTrip(ctx, method, path, body, token)
	if err != nil {
		return newErr(KindTransport, op, err)
	}

	if status == http.StatusUnauthorized {
		token, err = c.reauthenticate(ctx, op)
		if err != nil {
			return err
		}
		status, respBody, err = c.roundTrip(ctx, method, path, body, token)
		if err != nil {
			return newErr(KindTransport, op, err)
		}
	}

	return c.decodeResult(op, status, respBody, out)
}

func (c *Client) decodeResult(op string, status int, respBody []byte, out any) error {
	switch {
	case status == http.StatusNotFound:
		return newErr(KindNotFound, op, fmt.Errorf("%s", string(respBody)))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newErr(KindAuthFailure, op, fmt.Errorf("%s", string(respBody)))
	case status == http.StatusConflict:
		return newErr(KindConflict, op, fmt.Errorf("%s", string(respBody)))
	case status >= 500:
		return newErr(KindServer, op, fmt.Errorf("http %d: %s", status, string(respBody)))
	case status >= 400:
		return newErr(KindServer, op, fmt.Errorf("http %d: %s", status, string(respBody)))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return newErr(KindServer, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) ensureToken(ctx context.Context, op string) (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	return c.reauthenticate(ctx, op)
}

type authResponse struct {
	Token string `json:"token"`
}

// reauthenticate performs the email/password handshake and caches the
// resulting token. If re-authentication itself fails, the current call
// fails with AuthFailure (Transport on a network error). No failure state
// is kept: later calls are still sent, and each new 401 triggers another
// handshake attempt.
func (c *Client) reauthenticate(ctx context.Context, op string) (string, error) {
	body := map[string]string{
		"identity": c.email,
		"password": c.password,
	}
	status, respBody, err := c.roundTrip(ctx, http.MethodPost, "/api/admins/auth-with-password", body, "")
	if err != nil {
		return "", newErr(KindTransport, op, fmt.Errorf("authenticate: %w", err))
	}
	if status != http.StatusOK {
		return "", newErr(KindAuthFailure, op, fmt.Errorf("authenticate: http %d: %s", status, string(respBody)))
	}

	var auth authResponse
	if err := json.Unmarshal(respBody, &auth); err != nil {
		return "", newErr(KindAuthFailure, op, fmt.Errorf("decode auth response: %w", err))
	}
	if auth.Token == "" {
		return "", newErr(KindAuthFailure, op, fmt.Errorf("empty token in auth response"))
	}

	c.mu.Lock()
	c.token = auth.Token
	c.mu.Unlock()
	return auth.Token, nil
}
