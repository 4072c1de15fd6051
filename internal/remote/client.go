// Package remote holds the HTTP clients for the external collaborators:
// alternatives lookup, exercise exclusion, and session save. All failures
// are returned as errors for the caller to surface as retry affordances;
// nothing here mutates session state.
package remote

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
	"time"
)

// Alternative is a replacement candidate returned by the alternatives
// service.
type Alternative struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Pattern             string   `json:"pattern,omitempty"`
	LoadType            string   `json:"load_type,omitempty"`
	RequiresWeightInput bool     `json:"requires_weight_input"`
	SuggestedWeight     *float64 `json:"suggested_weight,omitempty"`
	Hint                string   `json:"hint,omitempty"`
}

// SaveResult is the save collaborator's acknowledgement. The progression
// fields reference an asynchronous follow-up recommendation job, when the
// backend schedules one.
type SaveResult struct {
	SessionID            string          `json:"session_id"`
	Progression          json.RawMessage `json:"progression,omitempty"`
	ProgressionJobID     string          `json:"progression_job_id,omitempty"`
	ProgressionJobStatus string          `json:"progression_job_status,omitempty"`
}

// Client talks to the fitness backend over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchAlternatives retrieves replacement candidates for an exercise. Read
// path: no retry here, the caller surfaces an inline retryable error.
func (c *Client) FetchAlternatives(ctx context.Context, exerciseID, reason string, allowedPatterns []string, limit int) ([]Alternative, error) {
	q := url.Values{}
	if reason != "" {
		q.Set("reason", reason)
	}
	if len(allowedPatterns) > 0 {
		q.Set("patterns", strings.Join(allowedPatterns, ","))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	endpoint := fmt.Sprintf("%s/v1/exercises/%s/alternatives", c.baseURL, url.PathEscape(exerciseID))
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building alternatives request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching alternatives: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("alternatives request failed (status %d): %s", resp.StatusCode, body)
	}

	var alts []Alternative
	if err := json.NewDecoder(resp.Body).Decode(&alts); err != nil {
		return nil, fmt.Errorf("decoding alternatives: %w", err)
	}
	return alts, nil
}

// ExcludeExercise records an idempotent exclusion for the exercise.
func (c *Client) ExcludeExercise(ctx context.Context, exerciseID, reason, source string) error {
	body, err := json.Marshal(map[string]string{
		"exercise_id": exerciseID,
		"reason":      reason,
		"source":      source,
	})
	if err != nil {
		return fmt.Errorf("marshaling exclusion: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/exclusions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building exclusion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("excluding exercise: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("exclusion failed (status %d): %s", resp.StatusCode, respBody)
	}
	return nil
}

// SaveSession POSTs the finalize payload to the save collaborator.
// Retries up to 3 times with exponential backoff on failure; the payload is
// identical on every attempt, so a retry never produces a duplicate save.
func (c *Client) SaveSession(ctx context.Context, payload any) (SaveResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return SaveResult{}, fmt.Errorf("marshaling payload: %w", err)
	}

	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return SaveResult{}, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/v1/sessions", bytes.NewReader(data))
		if err != nil {
			return SaveResult{}, fmt.Errorf("building save request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			var result SaveResult
			if err := json.Unmarshal(body, &result); err != nil {
				return SaveResult{}, fmt.Errorf("decoding save result: %w", err)
			}
			return result, nil
		}
		lastErr = fmt.Errorf("save failed (status %d): %s", resp.StatusCode, body)
	}

	return SaveResult{}, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}
