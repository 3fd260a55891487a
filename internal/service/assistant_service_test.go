package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docassist/internal/ai"
	appErr "github.com/xxxsen/docassist/internal/pkg/errors"
	"github.com/xxxsen/docassist/internal/vectorstore"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

type fakeStore struct {
	chunks  []vectorstore.Chunk
	err     error
	calls   int
	gotTopK int
}

func (f *fakeStore) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.Chunk, error) {
	f.calls++
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

type fakeChat struct {
	replies      []string
	errs         []error
	idx          int
	calls        [][]ai.Message
	streamDeltas []string
	streamErr    error
}

func (f *fakeChat) Chat(ctx context.Context, messages []ai.Message, opts ai.ChatOptions) (string, error) {
	f.calls = append(f.calls, messages)
	i := f.idx
	f.idx++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

func (f *fakeChat) ChatStream(ctx context.Context, messages []ai.Message, opts ai.ChatOptions, fn ai.StreamFunc) (string, error) {
	f.calls = append(f.calls, messages)
	if f.streamErr != nil {
		return "", f.streamErr
	}
	var full strings.Builder
	for _, delta := range f.streamDeltas {
		full.WriteString(delta)
		if err := fn(delta); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

func testChunks(n, textLen int) []vectorstore.Chunk {
	chunks := make([]vectorstore.Chunk, 0, n)
	for i := 0; i < n; i++ {
		chunks = append(chunks, vectorstore.Chunk{
			Title:      fmt.Sprintf("Doc %d", i+1),
			SourceURL:  fmt.Sprintf("https://docs.example.com/page-%d", i+1),
			HeaderPath: []string{"Guide", fmt.Sprintf("Section %d", i+1)},
			Text:       strings.Repeat(fmt.Sprintf("%d", i+1), textLen),
			Score:      float32(n-i) / float32(n),
		})
	}
	return chunks
}

func TestAskRejectsEmptyQuestionWithoutUpstreamCalls(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := &fakeStore{}
	chat := &fakeChat{}
	svc := NewAssistantService(embedder, chat, store, Options{})

	for _, question := range []string{"", "   ", "\n\t "} {
		_, err := svc.Ask(context.Background(), AskRequest{Question: question})
		require.ErrorIs(t, err, appErr.ErrInvalid)
	}
	require.Zero(t, embedder.calls)
	require.Zero(t, store.calls)
	require.Empty(t, chat.calls)
}

func TestAskBuildsPromptFromRetrievedChunks(t *testing.T) {
	budget := 10
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	store := &fakeStore{chunks: testChunks(6, 30)}
	chat := &fakeChat{replies: []string{"the answer [S1]", `{"followups":["q1","q2"]}`}}
	svc := NewAssistantService(embedder, chat, store, Options{SnippetChars: budget})

	answer, err := svc.Ask(context.Background(), AskRequest{Question: "how do I install it?"})
	require.NoError(t, err)
	require.Equal(t, "the answer [S1]", answer.Text)
	require.NotEmpty(t, answer.AnswerID)
	require.Equal(t, []string{"q1", "q2"}, answer.Followups)
	require.Equal(t, 6, store.gotTopK)

	require.Len(t, answer.Sources, 6)
	for i, src := range answer.Sources {
		expected := strings.Repeat(fmt.Sprintf("%d", i+1), budget) + "..."
		require.Equal(t, expected, src.Snippet)
		require.Equal(t, fmt.Sprintf("Doc %d", i+1), src.Title)
	}
	// descending similarity order preserved
	for i := 1; i < len(answer.Sources); i++ {
		require.LessOrEqual(t, answer.Sources[i].Score, answer.Sources[i-1].Score)
	}

	require.Len(t, chat.calls, 2)
	prompt := chat.calls[0][len(chat.calls[0])-1].Content
	require.Equal(t, 6, strings.Count(prompt, "[S"))
	lastIdx := -1
	for i := 1; i <= 6; i++ {
		idx := strings.Index(prompt, fmt.Sprintf("[S%d] Doc %d", i, i))
		require.Greater(t, idx, lastIdx)
		lastIdx = idx
		require.Contains(t, prompt, strings.Repeat(fmt.Sprintf("%d", i), budget)+"...")
	}
	require.NotContains(t, prompt, strings.Repeat("1", budget+1))
}

func TestAskForwardsOnlyRecentHistory(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.1}}
	store := &fakeStore{chunks: testChunks(1, 5)}
	chat := &fakeChat{replies: []string{"ok", `{"followups":["q"]}`}}
	svc := NewAssistantService(embedder, chat, store, Options{})

	history := make([]ai.Message, 0, 12)
	for i := 0; i < 12; i++ {
		history = append(history, ai.Message{Role: ai.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}
	_, err := svc.Ask(context.Background(), AskRequest{Question: "q", History: history})
	require.NoError(t, err)

	messages := chat.calls[0]
	// system + 8 history turns + final user message
	require.Len(t, messages, 10)
	require.Equal(t, ai.RoleSystem, messages[0].Role)
	require.Equal(t, "turn 4", messages[1].Content)
	require.Equal(t, "turn 11", messages[8].Content)
}

func TestAskEmbeddingFailureSkipsSearchAndChat(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding api down")}
	store := &fakeStore{}
	chat := &fakeChat{}
	svc := NewAssistantService(embedder, chat, store, Options{})

	_, err := svc.Ask(context.Background(), AskRequest{Question: "anything"})
	require.ErrorIs(t, err, appErr.ErrUpstream)
	require.Equal(t, 1, embedder.calls)
	require.Zero(t, store.calls)
	require.Empty(t, chat.calls)
}

func TestAskSearchFailureSkipsChat(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.5}}
	store := &fakeStore{err: errors.New("qdrant down")}
	chat := &fakeChat{}
	svc := NewAssistantService(embedder, chat, store, Options{})

	_, err := svc.Ask(context.Background(), AskRequest{Question: "anything"})
	require.ErrorIs(t, err, appErr.ErrUpstream)
	require.Empty(t, chat.calls)
}

func TestAskChatFailureIsUpstreamError(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.5}}
	store := &fakeStore{chunks: testChunks(2, 5)}
	chat := &fakeChat{errs: []error{errors.New("rate limited")}}
	svc := NewAssistantService(embedder, chat, store, Options{})

	_, err := svc.Ask(context.Background(), AskRequest{Question: "anything"})
	require.ErrorIs(t, err, appErr.ErrUpstream)
}

func TestAskFollowupFailureFallsBack(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.5}}
	store := &fakeStore{chunks: testChunks(1, 5)}
	chat := &fakeChat{
		replies: []string{"fine answer", "not json at all"},
	}
	svc := NewAssistantService(embedder, chat, store, Options{})

	answer, err := svc.Ask(context.Background(), AskRequest{Question: "anything"})
	require.NoError(t, err)
	require.Len(t, answer.Followups, 4)
}

func TestAskTopKOverrideAndClamp(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.5}}
	store := &fakeStore{chunks: testChunks(1, 5)}
	chat := &fakeChat{replies: []string{"a", `{"followups":["q"]}`, "a", `{"followups":["q"]}`}}
	svc := NewAssistantService(embedder, chat, store, Options{})

	_, err := svc.Ask(context.Background(), AskRequest{Question: "q", TopK: 3})
	require.NoError(t, err)
	require.Equal(t, 3, store.gotTopK)

	_, err = svc.Ask(context.Background(), AskRequest{Question: "q", TopK: 50})
	require.NoError(t, err)
	require.Equal(t, 12, store.gotTopK)
}

func TestStreamAnswerEmitsDeltasThenFinal(t *testing.T) {
	embedder := &fakeEmbedder{vec: []float32{0.5}}
	store := &fakeStore{chunks: testChunks(2, 5)}
	chat := &fakeChat{
		streamDeltas: []string{"hello ", "world"},
		replies:      []string{`{"followups":["next?"]}`},
	}
	svc := NewAssistantService(embedder, chat, store, Options{})

	var events []StreamEvent
	err := svc.StreamAnswer(context.Background(), AskRequest{Question: "q"}, func(ev StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "delta", events[0].Type)
	require.Equal(t, "hello ", events[0].Delta)
	require.Equal(t, "delta", events[1].Type)
	require.Equal(t, "final", events[2].Type)
	require.Equal(t, "hello world", events[2].Answer.Text)
	require.Equal(t, []string{"next?"}, events[2].Answer.Followups)
	require.Len(t, events[2].Answer.Sources, 2)
}

func TestStreamAnswerRetrievalFailureEmitsNothing(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("down")}
	store := &fakeStore{}
	chat := &fakeChat{}
	svc := NewAssistantService(embedder, chat, store, Options{})

	emitted := 0
	err := svc.StreamAnswer(context.Background(), AskRequest{Question: "q"}, func(ev StreamEvent) error {
		emitted++
		return nil
	})
	require.ErrorIs(t, err, appErr.ErrUpstream)
	require.Zero(t, emitted)
}

func TestParseFollowupsStripsFences(t *testing.T) {
	out, err := parseFollowups("```json\n{\"followups\":[\" a \",\"\",\"b\",\"c\",\"d\",\"e\"]}\n```")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, out)

	_, err = parseFollowups(`{"followups":[]}`)
	require.Error(t, err)
}

func TestNormalizeSourcesDefaultsTitle(t *testing.T) {
	svc := NewAssistantService(nil, nil, nil, Options{SnippetChars: 100})
	sources := svc.normalizeSources([]vectorstore.Chunk{{Text: "short text", Score: 0.9}})
	require.Len(t, sources, 1)
	require.Equal(t, "Documentation", sources[0].Title)
	require.Equal(t, "short text", sources[0].Snippet)
}
