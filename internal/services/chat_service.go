package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/yooventa/tubetalk/internal/models"
	"github.com/yooventa/tubetalk/internal/providers/llm"
	"github.com/yooventa/tubetalk/internal/repositories/postgres"
	"github.com/yooventa/tubetalk/internal/utils"
)

const (
	EventToken   = "token"
	EventSources = "sources"
	EventEnd     = "end"
	EventError   = "error"
)

// AnswerEvent is one frame of a streaming answer.
type AnswerEvent struct {
	Type      string            `json:"type"`
	Content   string            `json:"content,omitempty"`
	Citations []models.Citation `json:"citations,omitempty"`
	MessageID *int              `json:"message_id,omitempty"`
	Message   string            `json:"message,omitempty"`
}

type ChatConfig struct {
	TopK              int
	TokenBudget       int
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
}

type ChatService interface {
	// HandleTurn runs one question/answer turn. The user message is persisted
	// before the returned channel is handed out; everything after that is
	// reported through events, including failures. The channel is closed when
	// the turn is over. Cancelling ctx stops generation; whatever streamed so
	// far is persisted with an interrupted flag.
	HandleTurn(ctx context.Context, threadID, userMessage string) (<-chan AnswerEvent, error)
}

type chatService struct {
	history   HistoryService
	retriever RetrieverService
	provider  llm.Provider
	cfg       ChatConfig
	locks     *threadLocks
	log       *logrus.Logger
}

func NewChatService(history HistoryService, retriever RetrieverService, provider llm.Provider, cfg ChatConfig, log *logrus.Logger) ChatService {
	return &chatService{
		history:   history,
		retriever: retriever,
		provider:  provider,
		cfg:       cfg,
		locks:     newThreadLocks(),
		log:       log,
	}
}

func (s *chatService) HandleTurn(ctx context.Context, threadID, userMessage string) (<-chan AnswerEvent, error) {
	const op = "ChatService.HandleTurn"

	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "message is required", nil)
	}

	release := s.locks.Acquire(threadID)

	thread, err := s.history.GetThread(ctx, threadID)
	if err != nil {
		release()
		return nil, err
	}

	// the question is durable before any model work starts
	human := &models.Message{
		ThreadID: threadID,
		Role:     models.RoleHuman,
		Content:  userMessage,
	}
	if err := s.history.Append(ctx, human); err != nil {
		release()
		return nil, err
	}

	state, err := s.history.LoadLatestCheckpoint(ctx, threadID)
	if err != nil {
		release()
		return nil, err
	}

	events := make(chan AnswerEvent, 16)
	go func() {
		defer close(events)
		defer release()
		s.runTurn(ctx, thread, human, *state, userMessage, events)
	}()
	return events, nil
}

func (s *chatService) runTurn(ctx context.Context, thread *models.Thread, human *models.Message, state models.CheckpointState, userMessage string, events chan<- AnswerEvent) {
	log := s.log.WithField("thread_id", thread.ThreadID)

	fragments, err := s.retrieveWithRetry(ctx, userMessage, thread.VideoIDs)
	if err != nil {
		log.WithError(err).Error("retrieval failed")
		s.persistFailure(thread.ThreadID, human, state, nil)
		events <- AnswerEvent{Type: EventError, Message: utils.SafeMessage(err)}
		return
	}

	citations := make([]models.Citation, 0, len(fragments))
	for _, f := range fragments {
		citations = append(citations, models.Citation{
			VideoID:    f.VideoID,
			ChunkIndex: f.ChunkIndex,
			Score:      f.Score,
		})
	}
	events <- AnswerEvent{Type: EventSources, Citations: citations}

	prompt := BuildPrompt(state.Messages, fragments, userMessage, s.cfg.TokenBudget)

	genCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.GenerationTimeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()
	}

	tokens, errs := s.provider.StreamAnswer(genCtx, prompt)

	var answer strings.Builder
	var genErr error

loop:
	for {
		select {
		case tok, ok := <-tokens:
			if !ok {
				// stream finished; pick up a trailing error if one was queued
				if errs != nil {
					select {
					case err, eok := <-errs:
						if eok && err != nil {
							genErr = err
						}
					default:
					}
				}
				break loop
			}
			answer.WriteString(tok)
			events <- AnswerEvent{Type: EventToken, Content: tok}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				genErr = err
				break loop
			}
		case <-genCtx.Done():
			genErr = genCtx.Err()
			break loop
		}
	}

	// the caller going away is an interruption; hitting our own generation
	// deadline is a plain failure
	interrupted := genErr != nil && ctx.Err() != nil

	if genErr != nil && answer.Len() == 0 && !interrupted {
		// nothing streamed, so the turn fails cleanly
		log.WithError(genErr).Error("generation failed")
		s.persistFailure(thread.ThreadID, human, state, citations)
		events <- AnswerEvent{Type: EventError, Message: "answer generation failed"}
		return
	}

	// persist whatever the client saw, flagged if incomplete
	md := models.MessageMetadata{
		Citations:   citations,
		Error:       genErr != nil && !interrupted,
		Interrupted: interrupted,
	}
	mdJSON, _ := json.Marshal(md)
	ai := &models.Message{
		ThreadID: thread.ThreadID,
		Role:     models.RoleAI,
		Content:  answer.String(),
		Metadata: datatypes.JSON(mdJSON),
	}
	if err := s.history.Append(context.WithoutCancel(ctx), ai); err != nil {
		log.WithError(err).Error("failed to persist answer")
		events <- AnswerEvent{Type: EventError, Message: "failed to save the answer"}
		return
	}

	state.VideoIDs = thread.VideoIDs
	state.Messages = append(state.Messages,
		models.PromptMessage{Role: models.RoleHuman, Content: userMessage},
		models.PromptMessage{Role: models.RoleAI, Content: answer.String()},
	)
	state.LastSeq = ai.Seq
	if _, err := s.history.SaveCheckpoint(context.WithoutCancel(ctx), thread.ThreadID, state); err != nil {
		log.WithError(err).Error("failed to save checkpoint")
		events <- AnswerEvent{Type: EventError, Message: "failed to save the answer"}
		return
	}

	if genErr != nil {
		msg := "generation failed before completion"
		if interrupted {
			msg = "generation was interrupted"
		}
		events <- AnswerEvent{Type: EventError, Message: msg}
	}
	seq := ai.Seq
	events <- AnswerEvent{Type: EventEnd, MessageID: &seq}
}

func (s *chatService) retrieveWithRetry(ctx context.Context, query string, videoIDs []string) ([]postgres.ScoredFragment, error) {
	attempt := func() ([]postgres.ScoredFragment, error) {
		rctx := ctx
		var cancel context.CancelFunc
		if s.cfg.RetrievalTimeout > 0 {
			rctx, cancel = context.WithTimeout(ctx, s.cfg.RetrievalTimeout)
			defer cancel()
		}
		return s.retriever.Retrieve(rctx, query, videoIDs, s.cfg.TopK)
	}

	rows, err := attempt()
	if err == nil || ctx.Err() != nil || utils.IsCode(err, utils.CodeInvalidArgument) || utils.IsCode(err, utils.CodeNotFound) {
		return rows, err
	}
	return attempt()
}

// persistFailure records an ai error marker so the history shows the turn
// happened, without content.
func (s *chatService) persistFailure(threadID string, human *models.Message, state models.CheckpointState, citations []models.Citation) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	md := models.MessageMetadata{Citations: citations, Error: true}
	mdJSON, _ := json.Marshal(md)
	ai := &models.Message{
		ThreadID: threadID,
		Role:     models.RoleAI,
		Content:  "",
		Metadata: datatypes.JSON(mdJSON),
	}
	if err := s.history.Append(ctx, ai); err != nil {
		s.log.WithError(err).WithField("thread_id", threadID).Error("failed to record turn failure")
		return
	}

	state.Messages = append(state.Messages,
		models.PromptMessage{Role: models.RoleHuman, Content: human.Content},
	)
	state.LastSeq = ai.Seq
	if _, err := s.history.SaveCheckpoint(ctx, threadID, state); err != nil {
		s.log.WithError(err).WithField("thread_id", threadID).Error("failed to checkpoint turn failure")
	}
}
