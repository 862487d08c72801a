package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yooventa/tubetalk/internal/providers/llm"
	"github.com/yooventa/tubetalk/internal/repositories/postgres"
	"github.com/yooventa/tubetalk/internal/services"
)

// SummaryQueue enqueues summary jobs onto a redis stream so a failed or slow
// summary never blocks ingestion.
type SummaryQueue struct {
	Redis  *redis.Client
	Stream string
}

func NewSummaryQueue(rdb *redis.Client) *SummaryQueue {
	return &SummaryQueue{Redis: rdb, Stream: "summary:jobs"}
}

func (q *SummaryQueue) Enqueue(ctx context.Context, videoID string) error {
	return q.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: q.Stream,
		Values: map[string]any{"video_id": videoID},
	}).Err()
}

// SummaryWorkerPool consumes summary jobs, generates a short video summary
// with the LLM, and stores it on the video row. Progress is published on
// video:<id>:status for anyone watching.
type SummaryWorkerPool struct {
	Redis      *redis.Client
	Videos     postgres.VideoRepo
	LLM        llm.Provider
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *SummaryWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Videos == nil || p.LLM == nil {
		return errors.New("SummaryWorkerPool missing dependency: Redis/Videos/LLM must be set")
	}
	if p.Stream == "" {
		p.Stream = "summary:jobs"
	}
	if p.Group == "" {
		p.Group = "summary-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *SummaryWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *SummaryWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	videoID, _ := msg.Values["video_id"].(string)
	if videoID == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id": msg.ID,
		"video_id": videoID,
	})

	statusCh := "video:" + videoID + ":status"

	video, err := p.Videos.GetReady(ctx, videoID)
	if err != nil {
		log.WithError(err).Warn("video gone before summary")
		return
	}
	if video.Summary != "" {
		return
	}

	_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"summarizing"}`).Err()

	genCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	summary, err := p.LLM.Complete(genCtx, services.BuildSummaryPrompt(video.Title, video.Transcript))
	if err != nil {
		log.WithError(err).Error("summary generation failed")
		_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"summary_failed"}`).Err()
		return
	}

	if err := p.Videos.UpdateSummary(ctx, videoID, summary); err != nil {
		log.WithError(err).Error("summary store failed")
		_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"summary_failed"}`).Err()
		return
	}

	_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"summarized"}`).Err()
	log.Info("video summarized")
}
