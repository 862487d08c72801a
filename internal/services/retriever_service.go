package services

import (
	"context"
	"sort"

	"github.com/pgvector/pgvector-go"

	"github.com/yooventa/tubetalk/internal/providers/embedding"
	"github.com/yooventa/tubetalk/internal/repositories/postgres"
	"github.com/yooventa/tubetalk/internal/utils"
)

type RetrieverService interface {
	// Retrieve embeds the query and returns the top fragments from the given
	// videos, ordered by score descending with chunk index as tie-break.
	// An empty result is not an error.
	Retrieve(ctx context.Context, query string, videoIDs []string, topK int) ([]postgres.ScoredFragment, error)
}

type retrieverService struct {
	embedder  embedding.Embedder
	fragments postgres.FragmentRepo
	videos    postgres.VideoRepo
}

func NewRetrieverService(embedder embedding.Embedder, fragments postgres.FragmentRepo, videos postgres.VideoRepo) RetrieverService {
	return &retrieverService{embedder: embedder, fragments: fragments, videos: videos}
}

func (s *retrieverService) Retrieve(ctx context.Context, query string, videoIDs []string, topK int) ([]postgres.ScoredFragment, error) {
	const op = "RetrieverService.Retrieve"

	if query == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "query is required", nil)
	}
	if len(videoIDs) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one video_id is required", nil)
	}

	// refuse to mix embedding spaces: every video must have been indexed
	// under the model this embedder speaks
	for _, id := range videoIDs {
		v, err := s.videos.GetReady(ctx, id)
		if err != nil {
			return nil, utils.E(utils.CodeNotFound, op, "video is not indexed", err)
		}
		if v.EmbeddingModel != s.embedder.Model() {
			return nil, utils.E(utils.CodeRetrievalFailed, op, "video was indexed under a different embedding model", nil)
		}
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, utils.E(utils.CodeRetrievalFailed, op, "failed to embed query", err)
	}

	rows, err := s.fragments.Search(ctx, pgvector.NewVector(qvec), videoIDs, topK)
	if err != nil {
		return nil, utils.E(utils.CodeRetrievalFailed, op, "vector search failed", err)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if rows[i].VideoID != rows[j].VideoID {
			return rows[i].VideoID < rows[j].VideoID
		}
		return rows[i].ChunkIndex < rows[j].ChunkIndex
	})
	return rows, nil
}
