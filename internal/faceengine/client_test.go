package faceengine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sidecar(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
}

func TestExtractEmbedding_Success(t *testing.T) {
	srv := sidecar(t, `{"embedding":[0.1,0.2,0.3],"faces_detected":1,"quality_score":0.9}`)
	defer srv.Close()

	vec, err := New(srv.URL).ExtractEmbedding(context.Background(), "base64data")
	assert.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestExtractEmbedding_NoFace(t *testing.T) {
	srv := sidecar(t, `{"embedding":[],"faces_detected":0}`)
	defer srv.Close()

	_, err := New(srv.URL).ExtractEmbedding(context.Background(), "base64data")
	assert.True(t, errors.Is(err, ErrNoFaceDetected))
}

func TestExtractEmbedding_MultipleFaces(t *testing.T) {
	srv := sidecar(t, `{"embedding":[0.1],"faces_detected":3,"quality_score":0.9}`)
	defer srv.Close()

	_, err := New(srv.URL).ExtractEmbedding(context.Background(), "base64data")
	assert.True(t, errors.Is(err, ErrMultipleFacesDetected))
}

func TestExtractEmbedding_LowQuality(t *testing.T) {
	srv := sidecar(t, `{"embedding":[0.1],"faces_detected":1,"quality_score":0.1}`)
	defer srv.Close()

	_, err := New(srv.URL).ExtractEmbedding(context.Background(), "base64data")
	assert.True(t, errors.Is(err, ErrLowQuality))
}

func TestExtractEmbedding_EmptyInput(t *testing.T) {
	_, err := New("http://localhost:0").ExtractEmbedding(context.Background(), "")
	assert.Error(t, err)
}
