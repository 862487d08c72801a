package services

import (
	"context"
	"errors"

	"github.com/yooventa/tubetalk/internal/models"
	mongorepo "github.com/yooventa/tubetalk/internal/repositories/mongo"
	"github.com/yooventa/tubetalk/internal/repositories/postgres"
	"github.com/yooventa/tubetalk/internal/utils"
)

type HistoryService interface {
	// Append stores the message and returns it with its assigned seq.
	Append(ctx context.Context, msg *models.Message) error
	List(ctx context.Context, threadID string) ([]models.Message, error)
	GetThread(ctx context.Context, threadID string) (*models.Thread, error)
	ListThreads(ctx context.Context, limit int) ([]models.Thread, error)
	// DeleteThread removes the thread, its messages, and its checkpoints.
	DeleteThread(ctx context.Context, threadID string) error

	SaveCheckpoint(ctx context.Context, threadID string, state models.CheckpointState) (string, error)
	// LoadLatestCheckpoint returns an empty state when the thread has no
	// checkpoints yet.
	LoadLatestCheckpoint(ctx context.Context, threadID string) (*models.CheckpointState, error)
}

type historyService struct {
	threads     postgres.ThreadRepo
	messages    postgres.MessageRepo
	checkpoints mongorepo.CheckpointRepository
}

func NewHistoryService(threads postgres.ThreadRepo, messages postgres.MessageRepo, checkpoints mongorepo.CheckpointRepository) HistoryService {
	return &historyService{threads: threads, messages: messages, checkpoints: checkpoints}
}

func (s *historyService) Append(ctx context.Context, msg *models.Message) error {
	const op = "HistoryService.Append"

	if msg.ThreadID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "thread_id is required", nil)
	}
	if msg.Role != models.RoleHuman && msg.Role != models.RoleAI {
		return utils.E(utils.CodeInvalidArgument, op, "role must be human or ai", nil)
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "thread not found", err)
		}
		return utils.E(utils.CodePersistenceFailed, op, "failed to append message", err)
	}
	return nil
}

func (s *historyService) List(ctx context.Context, threadID string) ([]models.Message, error) {
	const op = "HistoryService.List"

	if _, err := s.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	rows, err := s.messages.List(ctx, threadID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}
	return rows, nil
}

func (s *historyService) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	const op = "HistoryService.GetThread"

	if threadID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "thread_id is required", nil)
	}
	t, err := s.threads.GetByID(ctx, threadID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "thread not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get thread", err)
	}
	return t, nil
}

func (s *historyService) ListThreads(ctx context.Context, limit int) ([]models.Thread, error) {
	const op = "HistoryService.ListThreads"

	rows, err := s.threads.List(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list threads", err)
	}
	return rows, nil
}

func (s *historyService) DeleteThread(ctx context.Context, threadID string) error {
	const op = "HistoryService.DeleteThread"

	if threadID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "thread_id is required", nil)
	}
	if err := s.threads.Delete(ctx, threadID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "thread not found", err)
		}
		return utils.E(utils.CodePersistenceFailed, op, "failed to delete thread", err)
	}
	// an orphaned checkpoint log is unreachable once the thread row is gone,
	// but the failure is surfaced so the caller can retry the cleanup
	if err := s.checkpoints.DeleteByThread(ctx, threadID); err != nil {
		return utils.E(utils.CodePersistenceFailed, op, "failed to delete checkpoints", err)
	}
	return nil
}

func (s *historyService) SaveCheckpoint(ctx context.Context, threadID string, state models.CheckpointState) (string, error) {
	const op = "HistoryService.SaveCheckpoint"

	id, err := s.checkpoints.Save(ctx, threadID, state)
	if err != nil {
		return "", utils.E(utils.CodePersistenceFailed, op, "failed to save checkpoint", err)
	}
	return id, nil
}

func (s *historyService) LoadLatestCheckpoint(ctx context.Context, threadID string) (*models.CheckpointState, error) {
	const op = "HistoryService.LoadLatestCheckpoint"

	cp, err := s.checkpoints.LoadLatest(ctx, threadID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return &models.CheckpointState{LastSeq: -1}, nil
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load checkpoint", err)
	}
	return &cp.State, nil
}
