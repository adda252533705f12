package matcher

import (
	"fmt"
	"math"
	"net/http"

	"go-bioattend/internal/shared/apperror"
)

const (
	// DefaultThreshold is the maximum accepted Euclidean distance between a
	// probe and an enrolled embedding.
	DefaultThreshold = 0.6

	// EmbeddingDim is the fixed length of every face embedding vector.
	EmbeddingDim = 128
)

// Candidate pairs an enrolled identity with its face embedding.
type Candidate struct {
	IdentityID string
	Vector     []float64
}

// Result is a positive match. Confidence is a reporting value only; the
// accept/reject criterion is the raw distance against the threshold.
type Result struct {
	IdentityID string
	Distance   float64
	Confidence float64
}

// ErrDimensionMismatch is returned when the probe or a candidate vector does
// not have the expected length. Comparing truncated vectors would silently
// produce garbage distances, so this is fatal to the request.
func errDimensionMismatch(want, got int) *apperror.AppError {
	return apperror.New(
		apperror.CodeDimensionMismatch,
		fmt.Sprintf("embedding has %d dimensions, expected %d", got, want),
		http.StatusBadRequest,
	)
}

// Match scans candidates for the nearest embedding to probe and accepts it
// only when its distance is strictly below threshold. Returns nil when no
// candidate qualifies. Ties on distance resolve to the lexicographically
// smallest identity id so results are stable across runs.
func Match(probe []float64, candidates []Candidate, threshold float64) (*Result, error) {
	if len(probe) == 0 {
		return nil, errDimensionMismatch(EmbeddingDim, 0)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var best *Result
	for _, c := range candidates {
		if len(c.Vector) != len(probe) {
			return nil, errDimensionMismatch(len(probe), len(c.Vector))
		}

		d := Distance(probe, c.Vector)
		if d >= threshold {
			continue
		}

		if best == nil || d < best.Distance ||
			(d == best.Distance && c.IdentityID < best.IdentityID) {
			best = &Result{
				IdentityID: c.IdentityID,
				Distance:   d,
				Confidence: confidence(d),
			}
		}
	}

	return best, nil
}

// Distance computes the Euclidean distance between two equal-length vectors.
func Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// confidence maps a distance onto [0, 1]. Distance is unbounded above, so
// the value floors at zero instead of going negative.
func confidence(distance float64) float64 {
	return math.Max(0, 1-distance)
}
