package services

import (
	"context"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yooventa/tubetalk/internal/models"
	"github.com/yooventa/tubetalk/internal/repositories/postgres"
	"github.com/yooventa/tubetalk/internal/utils"
)

type fakeEmbedder struct {
	model string
	vec   []float32
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return f.model }

type fakeFragmentRepo struct {
	results []postgres.ScoredFragment
	err     error
}

func (f *fakeFragmentRepo) InsertVideoWithFragments(_ context.Context, _ *models.Video, _ []models.TranscriptFragment) error {
	return nil
}

func (f *fakeFragmentRepo) Search(_ context.Context, _ pgvector.Vector, _ []string, _ int) ([]postgres.ScoredFragment, error) {
	return f.results, f.err
}

func (f *fakeFragmentRepo) CountByVideo(_ context.Context, _ string) (int64, error) {
	return int64(len(f.results)), nil
}

type fakeVideoRepo struct {
	videos map[string]*models.Video
}

func (f *fakeVideoRepo) GetByID(_ context.Context, id string) (*models.Video, error) {
	if v, ok := f.videos[id]; ok {
		return v, nil
	}
	return nil, utils.ErrNotFound
}

func (f *fakeVideoRepo) GetReady(ctx context.Context, id string) (*models.Video, error) {
	v, err := f.GetByID(ctx, id)
	if err != nil || !v.Ready {
		return nil, utils.ErrNotFound
	}
	return v, nil
}

func (f *fakeVideoRepo) UpdateSummary(_ context.Context, _, _ string) error { return nil }
func (f *fakeVideoRepo) Delete(_ context.Context, _ string) error           { return nil }

func scored(videoID string, idx int, score float64) postgres.ScoredFragment {
	f := postgres.ScoredFragment{Score: score}
	f.VideoID = videoID
	f.ChunkIndex = idx
	return f
}

func readyVideos(model string, ids ...string) *fakeVideoRepo {
	repo := &fakeVideoRepo{videos: make(map[string]*models.Video)}
	for _, id := range ids {
		repo.videos[id] = &models.Video{VideoID: id, EmbeddingModel: model, Ready: true}
	}
	return repo
}

func TestRetrieveOrdersByScoreThenChunkIndex(t *testing.T) {
	frags := &fakeFragmentRepo{results: []postgres.ScoredFragment{
		scored("v1", 7, 0.80),
		scored("v1", 2, 0.91),
		scored("v1", 9, 0.80),
		scored("v1", 1, 0.80),
	}}
	svc := NewRetrieverService(&fakeEmbedder{model: "m", vec: []float32{1}}, frags, readyVideos("m", "v1"))

	out, err := svc.Retrieve(context.Background(), "q", []string{"v1"}, 4)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, 2, out[0].ChunkIndex)
	assert.Equal(t, 1, out[1].ChunkIndex)
	assert.Equal(t, 7, out[2].ChunkIndex)
	assert.Equal(t, 9, out[3].ChunkIndex)
}

func TestRetrieveEmptyResultIsNotAnError(t *testing.T) {
	svc := NewRetrieverService(&fakeEmbedder{model: "m", vec: []float32{1}}, &fakeFragmentRepo{}, readyVideos("m", "v1"))

	out, err := svc.Retrieve(context.Background(), "q", []string{"v1"}, 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRetrieveRejectsModelMismatch(t *testing.T) {
	svc := NewRetrieverService(&fakeEmbedder{model: "new-model", vec: []float32{1}}, &fakeFragmentRepo{}, readyVideos("old-model", "v1"))

	_, err := svc.Retrieve(context.Background(), "q", []string{"v1"}, 5)
	require.Error(t, err)
	assert.Equal(t, utils.CodeRetrievalFailed, utils.CodeOf(err))
}

func TestRetrieveRejectsUnindexedVideo(t *testing.T) {
	repo := readyVideos("m", "v1")
	repo.videos["v2"] = &models.Video{VideoID: "v2", EmbeddingModel: "m", Ready: false}
	svc := NewRetrieverService(&fakeEmbedder{model: "m", vec: []float32{1}}, &fakeFragmentRepo{}, repo)

	_, err := svc.Retrieve(context.Background(), "q", []string{"v1", "v2"}, 5)
	require.Error(t, err)
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))
}

func TestRetrieveValidatesInput(t *testing.T) {
	svc := NewRetrieverService(&fakeEmbedder{model: "m", vec: []float32{1}}, &fakeFragmentRepo{}, readyVideos("m"))

	_, err := svc.Retrieve(context.Background(), "", []string{"v1"}, 5)
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))

	_, err = svc.Retrieve(context.Background(), "q", nil, 5)
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))
}
