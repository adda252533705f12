package faceengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-bioattend/internal/shared/apperror"
)

// Typed extraction failures. These are user-facing and retryable with a
// better sample, so they carry 422 rather than a server error.
var (
	ErrNoFaceDetected = apperror.New(
		"NO_FACE_DETECTED",
		"No face was detected in the supplied image",
		http.StatusUnprocessableEntity,
	)
	ErrMultipleFacesDetected = apperror.New(
		"MULTIPLE_FACES_DETECTED",
		"More than one face was detected in the supplied image",
		http.StatusUnprocessableEntity,
	)
	ErrLowQuality = apperror.New(
		"LOW_QUALITY",
		"The supplied image quality is too low for recognition",
		http.StatusUnprocessableEntity,
	)
)

const minQualityScore = 0.3

// Client calls the face embedding sidecar. The core treats extraction as an
// opaque upstream step producing the probe vector.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // embedding extraction can be slow
		},
	}
}

// Extractor is the seam services depend on; the HTTP client satisfies it.
type Extractor interface {
	ExtractEmbedding(ctx context.Context, imageData string) ([]float64, error)
}

// ExtractEmbedding posts a base64 image to the sidecar and returns the face
// embedding vector.
func (c *Client) ExtractEmbedding(ctx context.Context, imageData string) ([]float64, error) {
	if imageData == "" {
		return nil, fmt.Errorf("image data required")
	}

	body, _ := json.Marshal(map[string]string{"image": imageData})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face engine error %s: %s", resp.Status, string(raw))
	}

	var out struct {
		Embedding     []float64 `json:"embedding"`
		FacesDetected int       `json:"faces_detected"`
		QualityScore  float64   `json:"quality_score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode face engine response: %w", err)
	}

	switch {
	case out.FacesDetected == 0 || len(out.Embedding) == 0:
		return nil, ErrNoFaceDetected
	case out.FacesDetected > 1:
		return nil, ErrMultipleFacesDetected
	case out.QualityScore > 0 && out.QualityScore < minQualityScore:
		return nil, ErrLowQuality
	}

	return out.Embedding, nil
}
