// Package quality implements the content-quality probe (spec §4.2): it
// asks an external summary service for a short summary of a candidate URL
// and applies a minimum-length acceptance rule. It is the only admission
// check that inspects remote content.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Result distinguishes a content-based rejection (spec §4.3 "QualityTooLow",
// mapped to HTTP 400) from a failure to reach or parse the external service
// ("ProbeUnavailable", mapped to HTTP 502).
type Result struct {
	Accepted    bool
	Reason      string
	Unavailable bool
}

// Prober is satisfied by Probe; tests substitute a stub.
type Prober interface {
	Probe(ctx context.Context, url string) Result
}

// Probe calls a configured external summary service and applies the
// acceptance rule of spec §4.2.
type Probe struct {
	serviceURL string
	minChars   int
	timeout    time.Duration
	httpClient *http.Client
}

// New builds a Probe. serviceURL is the summary service's endpoint;
// minChars is the minimum trimmed-summary length to accept (default 200
// per spec §4.2); timeout bounds the whole call (default 30s).
func New(serviceURL string, minChars int, timeout time.Duration) *Probe {
	if minChars <= 0 {
		minChars = 200
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Probe{
		serviceURL: serviceURL,
		minChars:   minChars,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// Probe fetches a summary of url and applies the minimum-length rule.
// Any failure to reach or parse the external service yields rejection —
// never acceptance by default (spec §4.2). The probe is not retried
// internally; the caller decides whether to retry the whole submission.
func (p *Probe) Probe(ctx context.Context, candidateURL string) Result {
	if p.serviceURL == "" {
		return Result{Reason: "quality probe misconfigured: no service URL", Unavailable: true}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serviceURL, nil)
	if err != nil {
		return Result{Reason: fmt.Sprintf("quality probe request error: %v", err), Unavailable: true}
	}
	q := req.URL.Query()
	q.Set("url", candidateURL)
	req.URL.RawQuery = q.Encode()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Result{Reason: fmt.Sprintf("quality probe unreachable: %v", err), Unavailable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{Reason: fmt.Sprintf("quality probe returned HTTP %d: %s", resp.StatusCode, string(body)), Unavailable: true}
	}

	var out summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{Reason: fmt.Sprintf("quality probe returned malformed response: %v", err), Unavailable: true}
	}

	summary := strings.TrimSpace(out.Summary)
	if n := utf8.RuneCountInString(summary); n < p.minChars {
		return Result{Reason: fmt.Sprintf("summary too short: %d chars, need %d", n, p.minChars)}
	}
	return Result{Accepted: true}
}
