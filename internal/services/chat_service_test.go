package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yooventa/tubetalk/internal/models"
	"github.com/yooventa/tubetalk/internal/providers/llm"
	"github.com/yooventa/tubetalk/internal/repositories/postgres"
	"github.com/yooventa/tubetalk/internal/utils"
)

type fakeRetriever struct {
	results []postgres.ScoredFragment
	err     error
	calls   int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ []string, _ int) ([]postgres.ScoredFragment, error) {
	f.calls++
	return f.results, f.err
}

// fakeProvider streams the given tokens, then optionally fails.
type fakeProvider struct {
	tokens   []string
	finalErr error
}

func (f *fakeProvider) StreamAnswer(ctx context.Context, _ string) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, tok := range f.tokens {
			select {
			case out <- tok:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if f.finalErr != nil {
			errs <- f.finalErr
		}
	}()
	return out, errs
}

func (f *fakeProvider) Complete(_ context.Context, _ string) (string, error) { return "", nil }
func (f *fakeProvider) Close() error                                        { return nil }

// stallingProvider emits its tokens and then hangs until the context ends.
type stallingProvider struct {
	tokens []string
}

func (p *stallingProvider) StreamAnswer(ctx context.Context, _ string) (<-chan string, <-chan error) {
	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errs)
		for _, tok := range p.tokens {
			select {
			case out <- tok:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		<-ctx.Done()
		errs <- ctx.Err()
	}()
	return out, errs
}

func (p *stallingProvider) Complete(_ context.Context, _ string) (string, error) { return "", nil }
func (p *stallingProvider) Close() error                                         { return nil }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func chatFixture(t *testing.T, retriever RetrieverService, provider llm.Provider) (ChatService, HistoryService, *memMessageRepo, *memCheckpointRepo) {
	return chatFixtureTimeout(t, retriever, provider, 5*time.Second)
}

func chatFixtureTimeout(t *testing.T, retriever RetrieverService, provider llm.Provider, genTimeout time.Duration) (ChatService, HistoryService, *memMessageRepo, *memCheckpointRepo) {
	t.Helper()
	history, threads, messages, checkpoints := newTestHistory()
	require.NoError(t, threads.Insert(context.Background(), &models.Thread{ThreadID: "t1", VideoIDs: []string{"v1"}}))
	svc := NewChatService(history, retriever, provider, ChatConfig{
		TopK:              3,
		TokenBudget:       4000,
		RetrievalTimeout:  time.Second,
		GenerationTimeout: genTimeout,
	}, quietLogger())
	return svc, history, messages, checkpoints
}

func collect(events <-chan AnswerEvent) []AnswerEvent {
	var out []AnswerEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestHandleTurnStreamsAndPersists(t *testing.T) {
	retriever := &fakeRetriever{results: []postgres.ScoredFragment{scored("v1", 0, 0.9)}}
	provider := &fakeProvider{tokens: []string{"Hello", " world"}}
	svc, history, messages, checkpoints := chatFixture(t, retriever, provider)

	events, err := svc.HandleTurn(context.Background(), "t1", "what is said?")
	require.NoError(t, err)
	evs := collect(events)

	require.Len(t, evs, 4)
	assert.Equal(t, EventSources, evs[0].Type)
	require.Len(t, evs[0].Citations, 1)
	assert.Equal(t, "v1", evs[0].Citations[0].VideoID)
	assert.Equal(t, EventToken, evs[1].Type)
	assert.Equal(t, "Hello", evs[1].Content)
	assert.Equal(t, EventToken, evs[2].Type)
	assert.Equal(t, " world", evs[2].Content)
	assert.Equal(t, EventEnd, evs[3].Type)
	require.NotNil(t, evs[3].MessageID)
	assert.Equal(t, 1, *evs[3].MessageID)

	rows, err := messages.List(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.RoleHuman, rows[0].Role)
	assert.Equal(t, "what is said?", rows[0].Content)
	assert.Equal(t, models.RoleAI, rows[1].Role)
	assert.Equal(t, "Hello world", rows[1].Content)

	state, err := history.LoadLatestCheckpoint(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.LastSeq)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "Hello world", state.Messages[1].Content)

	_ = checkpoints
}

func TestHandleTurnPersistsPartialAnswerOnStreamFailure(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &fakeProvider{tokens: []string{"partial"}, finalErr: errors.New("upstream hiccup")}
	svc, _, messages, _ := chatFixture(t, retriever, provider)

	events, err := svc.HandleTurn(context.Background(), "t1", "q")
	require.NoError(t, err)
	evs := collect(events)

	// sources, token, error, end
	require.Len(t, evs, 4)
	assert.Equal(t, EventToken, evs[1].Type)
	assert.Equal(t, EventError, evs[2].Type)
	assert.Equal(t, EventEnd, evs[3].Type)

	rows, err := messages.List(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "partial", rows[1].Content)

	var md models.MessageMetadata
	require.NoError(t, json.Unmarshal(rows[1].Metadata, &md))
	assert.True(t, md.Error)
	assert.False(t, md.Interrupted)
}

func TestHandleTurnFailsCleanlyBeforeFirstToken(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &fakeProvider{finalErr: errors.New("model unavailable")}
	svc, _, messages, _ := chatFixture(t, retriever, provider)

	events, err := svc.HandleTurn(context.Background(), "t1", "q")
	require.NoError(t, err)
	evs := collect(events)

	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, EventError, last.Type)
	for _, ev := range evs {
		assert.NotEqual(t, EventToken, ev.Type)
		assert.NotEqual(t, EventEnd, ev.Type)
	}

	// the human question and an ai failure marker are both durable
	rows, err := messages.List(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.RoleHuman, rows[0].Role)
	assert.Equal(t, models.RoleAI, rows[1].Role)
	assert.Empty(t, rows[1].Content)

	var md models.MessageMetadata
	require.NoError(t, json.Unmarshal(rows[1].Metadata, &md))
	assert.True(t, md.Error)
}

func TestHandleTurnRetriesRetrievalOnce(t *testing.T) {
	retriever := &fakeRetriever{err: utils.E(utils.CodeRetrievalFailed, "RetrieverService.Retrieve", "vector search failed", nil)}
	provider := &fakeProvider{tokens: []string{"unused"}}
	svc, _, messages, _ := chatFixture(t, retriever, provider)

	events, err := svc.HandleTurn(context.Background(), "t1", "q")
	require.NoError(t, err)
	evs := collect(events)

	assert.Equal(t, 2, retriever.calls)
	require.NotEmpty(t, evs)
	assert.Equal(t, EventError, evs[len(evs)-1].Type)

	rows, err := messages.List(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestHandleTurnEmptyRetrievalStillAnswers(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &fakeProvider{tokens: []string{"I cannot find that in the video."}}
	svc, _, _, _ := chatFixture(t, retriever, provider)

	events, err := svc.HandleTurn(context.Background(), "t1", "q")
	require.NoError(t, err)
	evs := collect(events)

	require.Len(t, evs, 3)
	assert.Equal(t, EventSources, evs[0].Type)
	assert.Empty(t, evs[0].Citations)
	assert.Equal(t, EventToken, evs[1].Type)
	assert.Equal(t, EventEnd, evs[2].Type)
}

func TestHandleTurnTwoSequentialTurns(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &fakeProvider{tokens: []string{"answer"}}
	svc, history, messages, _ := chatFixture(t, retriever, provider)

	for _, q := range []string{"first?", "second?"} {
		events, err := svc.HandleTurn(context.Background(), "t1", q)
		require.NoError(t, err)
		collect(events)
	}

	rows, err := messages.List(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"human", "ai", "human", "ai"},
		[]string{rows[0].Role, rows[1].Role, rows[2].Role, rows[3].Role})
	assert.Equal(t, []int{0, 1, 2, 3},
		[]int{rows[0].Seq, rows[1].Seq, rows[2].Seq, rows[3].Seq})

	state, err := history.LoadLatestCheckpoint(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, state.LastSeq)
	assert.Len(t, state.Messages, 4)
}

func TestHandleTurnTimeoutBeforeFirstTokenFailsCleanly(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &stallingProvider{}
	svc, _, messages, _ := chatFixtureTimeout(t, retriever, provider, 50*time.Millisecond)

	events, err := svc.HandleTurn(context.Background(), "t1", "q")
	require.NoError(t, err)
	evs := collect(events)

	require.NotEmpty(t, evs)
	assert.Equal(t, EventError, evs[len(evs)-1].Type)
	for _, ev := range evs {
		assert.NotEqual(t, EventToken, ev.Type)
		assert.NotEqual(t, EventEnd, ev.Type)
	}

	rows, err := messages.List(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Empty(t, rows[1].Content)

	var md models.MessageMetadata
	require.NoError(t, json.Unmarshal(rows[1].Metadata, &md))
	assert.True(t, md.Error)
	assert.False(t, md.Interrupted)
}

func TestHandleTurnTimeoutMidStreamFlagsPartialAsError(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &stallingProvider{tokens: []string{"The ", "video "}}
	svc, _, messages, _ := chatFixtureTimeout(t, retriever, provider, 100*time.Millisecond)

	events, err := svc.HandleTurn(context.Background(), "t1", "q")
	require.NoError(t, err)
	evs := collect(events)

	assert.Equal(t, EventEnd, evs[len(evs)-1].Type)
	assert.Equal(t, EventError, evs[len(evs)-2].Type)

	rows, err := messages.List(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "The video ", rows[1].Content)

	var md models.MessageMetadata
	require.NoError(t, json.Unmarshal(rows[1].Metadata, &md))
	assert.True(t, md.Error)
	assert.False(t, md.Interrupted)
}

func TestHandleTurnClientCancelPersistsInterruptedPartial(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &stallingProvider{tokens: []string{"partial "}}
	svc, _, messages, _ := chatFixture(t, retriever, provider)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := svc.HandleTurn(ctx, "t1", "q")
	require.NoError(t, err)

	var evs []AnswerEvent
	for ev := range events {
		evs = append(evs, ev)
		if ev.Type == EventToken {
			cancel()
		}
	}
	defer cancel()

	assert.Equal(t, EventEnd, evs[len(evs)-1].Type)
	assert.Equal(t, EventError, evs[len(evs)-2].Type)
	assert.Equal(t, "generation was interrupted", evs[len(evs)-2].Message)

	rows, err := messages.List(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "partial ", rows[1].Content)

	var md models.MessageMetadata
	require.NoError(t, json.Unmarshal(rows[1].Metadata, &md))
	assert.False(t, md.Error)
	assert.True(t, md.Interrupted)
}

func TestHandleTurnValidation(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &fakeProvider{}
	svc, _, _, _ := chatFixture(t, retriever, provider)

	_, err := svc.HandleTurn(context.Background(), "t1", "   ")
	assert.Equal(t, utils.CodeInvalidArgument, utils.CodeOf(err))

	_, err = svc.HandleTurn(context.Background(), "missing", "q")
	assert.Equal(t, utils.CodeNotFound, utils.CodeOf(err))
}
