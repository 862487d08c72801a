package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"

	"github.com/yooventa/tubetalk/internal/chunker"
	"github.com/yooventa/tubetalk/internal/models"
	"github.com/yooventa/tubetalk/internal/providers/embedding"
	"github.com/yooventa/tubetalk/internal/providers/youtube"
	"github.com/yooventa/tubetalk/internal/repositories/postgres"
	"github.com/yooventa/tubetalk/internal/utils"
)

// SummaryQueue accepts background summary jobs for ingested videos.
type SummaryQueue interface {
	Enqueue(ctx context.Context, videoID string) error
}

// VideoSource is the slice of the YouTube client ingestion depends on.
type VideoSource interface {
	GetMetadata(ctx context.Context, videoID string) (*youtube.Metadata, error)
	GetTranscript(ctx context.Context, videoID string) (string, error)
	GetDuration(ctx context.Context, videoID string) (int, error)
}

type IngestService interface {
	// Ingest fetches, chunks, embeds, and indexes one video. Repeated calls
	// for an already indexed video return the existing row without rework.
	Ingest(ctx context.Context, videoURL string) (*models.Video, error)
	CreateThread(ctx context.Context, videoURLs []string, title string) (*models.Thread, error)
	GetVideo(ctx context.Context, videoID string) (*models.Video, error)
}

type IngestConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	EmbedBatchSize  int
	MaxVideoSeconds int
}

type ingestService struct {
	source    VideoSource
	embedder  embedding.Embedder
	videos    postgres.VideoRepo
	fragments postgres.FragmentRepo
	threads   postgres.ThreadRepo
	summaries SummaryQueue
	cfg       IngestConfig
	log       *logrus.Logger
}

func NewIngestService(
	source VideoSource,
	embedder embedding.Embedder,
	videos postgres.VideoRepo,
	fragments postgres.FragmentRepo,
	threads postgres.ThreadRepo,
	summaries SummaryQueue,
	cfg IngestConfig,
	log *logrus.Logger,
) IngestService {
	return &ingestService{
		source:    source,
		embedder:  embedder,
		videos:    videos,
		fragments: fragments,
		threads:   threads,
		summaries: summaries,
		cfg:       cfg,
		log:       log,
	}
}

func (s *ingestService) Ingest(ctx context.Context, videoURL string) (*models.Video, error) {
	const op = "IngestService.Ingest"

	videoID, err := youtube.ParseVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	if existing, err := s.videos.GetReady(ctx, videoID); err == nil {
		return existing, nil
	} else if !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to look up video", err)
	}

	var duration *int
	if dur, err := s.source.GetDuration(ctx, videoID); err == nil {
		if s.cfg.MaxVideoSeconds > 0 && dur > s.cfg.MaxVideoSeconds {
			return nil, utils.E(utils.CodeInvalidArgument, op, "video is too long to index", nil)
		}
		duration = &dur
	}

	transcript, err := s.source.GetTranscript(ctx, videoID)
	if err != nil {
		return nil, err
	}

	frags, err := chunker.Split(transcript, chunker.Config{
		ChunkSize: s.cfg.ChunkSize,
		Overlap:   s.cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}
	ranges := chunker.TimestampRanges(transcript, frags)

	rows := make([]models.TranscriptFragment, 0, len(frags))
	for bstart := 0; bstart < len(frags); bstart += s.batchSize() {
		bend := bstart + s.batchSize()
		if bend > len(frags) {
			bend = len(frags)
		}
		texts := make([]string, 0, bend-bstart)
		for _, f := range frags[bstart:bend] {
			texts = append(texts, f.Content)
		}

		vecs, err := s.embedBatchWithRetry(ctx, texts)
		if err != nil {
			return nil, utils.E(utils.CodeIndexFailed, op, "failed to embed transcript", err)
		}

		for i, f := range frags[bstart:bend] {
			row := models.TranscriptFragment{
				VideoID:     videoID,
				ChunkIndex:  f.Index,
				Content:     f.Content,
				StartOffset: f.Start,
				EndOffset:   f.End,
				Embedding:   pgvector.NewVector(vecs[i]),
			}
			if r := ranges[f.Index]; r != nil {
				start, end := r.StartSeconds, r.EndSeconds
				row.StartSeconds = &start
				row.EndSeconds = &end
			}
			rows = append(rows, row)
		}
	}

	now := time.Now().UTC()
	video := &models.Video{
		VideoID:        videoID,
		URL:            videoURL,
		Title:          videoID,
		Transcript:     transcript,
		EmbeddingModel: s.embedder.Model(),
		Ready:          true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if md, err := s.source.GetMetadata(ctx, videoID); err == nil {
		video.Title = md.Title
		if md.AuthorName != "" {
			video.AuthorName = &md.AuthorName
		}
		if md.ThumbnailURL != "" {
			video.ThumbnailURL = &md.ThumbnailURL
		}
	} else {
		s.log.WithError(err).WithField("video_id", videoID).Warn("metadata fetch failed")
	}
	video.DurationSeconds = duration

	if err := s.fragments.InsertVideoWithFragments(ctx, video, rows); err != nil {
		return nil, utils.E(utils.CodePersistenceFailed, op, "failed to store video index", err)
	}

	if s.summaries != nil {
		if err := s.summaries.Enqueue(ctx, videoID); err != nil {
			s.log.WithError(err).WithField("video_id", videoID).Warn("summary enqueue failed")
		}
	}

	s.log.WithFields(logrus.Fields{
		"video_id":  videoID,
		"fragments": len(rows),
	}).Info("video indexed")
	return video, nil
}

func (s *ingestService) CreateThread(ctx context.Context, videoURLs []string, title string) (*models.Thread, error) {
	const op = "IngestService.CreateThread"

	if len(videoURLs) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one video_url is required", nil)
	}

	videoIDs := make([]string, 0, len(videoURLs))
	for _, u := range videoURLs {
		v, err := s.Ingest(ctx, u)
		if err != nil {
			return nil, err
		}
		videoIDs = append(videoIDs, v.VideoID)
		if title == "" {
			title = v.Title
		}
	}

	t := &models.Thread{
		ThreadID:  uuid.NewString(),
		VideoIDs:  videoIDs,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.threads.Insert(ctx, t); err != nil {
		return nil, utils.E(utils.CodePersistenceFailed, op, "failed to create thread", err)
	}
	return t, nil
}

func (s *ingestService) GetVideo(ctx context.Context, videoID string) (*models.Video, error) {
	const op = "IngestService.GetVideo"

	if videoID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "video_id is required", nil)
	}
	v, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "video not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get video", err)
	}
	return v, nil
}

func (s *ingestService) batchSize() int {
	if s.cfg.EmbedBatchSize <= 0 {
		return 16
	}
	return s.cfg.EmbedBatchSize
}

func (s *ingestService) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
