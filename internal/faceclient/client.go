// Package faceclient calls the face recognition microservice.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"facemark/internal/facematch"
)

// SearchResult contains 1:N identification results for one submitted image.
// Matches are ordered by descending similarity and may repeat an identity
// when several gallery faces of the same person match.
type SearchResult struct {
	Matches       []facematch.Candidate
	FacesDetected int
}

// Client calls the face recognition service over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. The timeout is generous; face search can take time.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Search performs 1:N identification of the captured image against the
// enrolled collection. Returns zero or more candidates; the service applies
// the confidence threshold before responding, so no filtering happens here.
func (c *Client) Search(ctx context.Context, image []byte, collection string, threshold float64, maxFaces int) (*SearchResult, error) {
	if c.Skip {
		return &SearchResult{
			Matches:       []facematch.Candidate{{Identity: "mock-student", Confidence: 0.92}},
			FacesDetected: 1,
		}, nil
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("image bytes required")
	}

	payload := map[string]interface{}{
		"image":      image, // base64-encoded by encoding/json
		"collection": collection,
		"max_faces":  maxFaces,
	}
	if threshold > 0 {
		payload["threshold"] = threshold
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Matches []struct {
			Identity   string  `json:"identity"`
			Similarity float64 `json:"similarity"`
		} `json:"matches"`
		FacesDetected int `json:"faces_detected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	result := &SearchResult{FacesDetected: out.FacesDetected}
	for _, m := range out.Matches {
		result.Matches = append(result.Matches, facematch.Candidate{
			Identity:   m.Identity,
			Confidence: m.Similarity,
		})
	}
	return result, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}

	return nil
}
