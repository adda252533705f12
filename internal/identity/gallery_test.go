package identity

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func templateFor(t *testing.T, identityID uuid.UUID, vec []float64) FaceTemplate {
	t.Helper()
	raw, err := json.Marshal(vec)
	assert.NoError(t, err)
	return FaceTemplate{ID: uuid.New(), IdentityID: identityID, Embedding: raw}
}

func TestGallery_CachesUntilInvalidated(t *testing.T) {
	identityID := uuid.New()
	loads := 0
	repo := &fakeRepo{
		listActiveFaceTemplatesFn: func(ctx context.Context) ([]FaceTemplate, error) {
			loads++
			return []FaceTemplate{templateFor(t, identityID, fullVec(0.5))}, nil
		},
	}

	g := NewGallery(repo, time.Minute)
	ctx := context.Background()

	first, err := g.Candidates(ctx)
	assert.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Equal(t, identityID.String(), first[0].IdentityID)

	_, err = g.Candidates(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, loads)

	g.Invalidate()
	_, err = g.Candidates(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestGallery_MalformedTemplate(t *testing.T) {
	repo := &fakeRepo{
		listActiveFaceTemplatesFn: func(ctx context.Context) ([]FaceTemplate, error) {
			return []FaceTemplate{{ID: uuid.New(), IdentityID: uuid.New(), Embedding: []byte("not json")}}, nil
		},
	}

	g := NewGallery(repo, time.Minute)
	_, err := g.Candidates(context.Background())
	assert.Error(t, err)
}
