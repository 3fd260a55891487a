package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docassist/internal/ai"
	"github.com/xxxsen/docassist/internal/model"
	appErr "github.com/xxxsen/docassist/internal/pkg/errors"
	"github.com/xxxsen/docassist/internal/vectorstore"
)

const (
	defaultTopK         = 6
	maxTopK             = 12
	defaultSnippetChars = 700
	maxHistoryTurns     = 8
	maxFollowups        = 4

	answerTemperature   = 0.2
	followupTemperature = 0.4
)

const systemPrompt = "You are the documentation portal's built-in AI assistant. " +
	"Answer only from the provided context. " +
	"If the context is not enough, say so explicitly and suggest what to clarify. " +
	"Keep answers short and to the point. " +
	"Attach source markers like [S1], [S2] to factual statements. " +
	"Answer in the language of the question."

const defaultSourceTitle = "Documentation"

type Options struct {
	TopK         int
	SnippetChars int
	Timeout      time.Duration
}

type AssistantService struct {
	embedder ai.IEmbedder
	chat     ai.IChatClient
	store    vectorstore.Store
	opts     Options
}

func NewAssistantService(embedder ai.IEmbedder, chat ai.IChatClient, store vectorstore.Store, opts Options) *AssistantService {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = defaultSnippetChars
	}
	return &AssistantService{
		embedder: embedder,
		chat:     chat,
		store:    store,
		opts:     opts,
	}
}

type AskRequest struct {
	Question string
	History  []ai.Message
	TopK     int
}

type Answer struct {
	AnswerID  string
	Text      string
	Sources   []model.Source
	Followups []string
}

type StreamEvent struct {
	Type   string
	Delta  string
	Answer *Answer
}

func (s *AssistantService) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", appErr.ErrInvalid)
	}
	sources, contextBlock, err := s.retrieve(ctx, question, req.TopK)
	if err != nil {
		return nil, err
	}
	messages := buildMessages(question, req.History, contextBlock)
	text, err := s.generate(ctx, messages)
	if err != nil {
		logutil.GetLogger(ctx).Error("chat completion failed", zap.Error(err))
		return nil, fmt.Errorf("%w: chat completion: %v", appErr.ErrUpstream, err)
	}
	return &Answer{
		AnswerID:  uuid.NewString(),
		Text:      text,
		Sources:   sources,
		Followups: s.generateFollowups(ctx, question, text, sources),
	}, nil
}

// StreamAnswer runs the same pipeline as Ask but delivers the answer text
// incrementally through emit, finishing with one final event carrying the
// complete answer. Retrieval failures are returned before anything is
// emitted.
func (s *AssistantService) StreamAnswer(ctx context.Context, req AskRequest, emit func(StreamEvent) error) error {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return fmt.Errorf("%w: question is required", appErr.ErrInvalid)
	}
	sources, contextBlock, err := s.retrieve(ctx, question, req.TopK)
	if err != nil {
		return err
	}
	messages := buildMessages(question, req.History, contextBlock)

	streamCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	text, err := s.chat.ChatStream(streamCtx, messages, ai.ChatOptions{Temperature: answerTemperature}, func(delta string) error {
		return emit(StreamEvent{Type: "delta", Delta: delta})
	})
	if err != nil {
		logutil.GetLogger(ctx).Error("chat stream failed", zap.Error(err))
		return fmt.Errorf("%w: chat completion: %v", appErr.ErrUpstream, err)
	}
	return emit(StreamEvent{
		Type: "final",
		Answer: &Answer{
			AnswerID:  uuid.NewString(),
			Text:      text,
			Sources:   sources,
			Followups: s.generateFollowups(ctx, question, text, sources),
		},
	})
}

func (s *AssistantService) retrieve(ctx context.Context, question string, topK int) ([]model.Source, string, error) {
	logger := logutil.GetLogger(ctx).With(zap.Int("top_k", s.clampTopK(topK)))
	embedCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	vector, err := s.embedder.Embed(embedCtx, question)
	if err != nil {
		logger.Error("embed query failed", zap.Error(err))
		return nil, "", fmt.Errorf("%w: embed query: %v", appErr.ErrUpstream, err)
	}
	searchCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	hits, err := s.store.Search(searchCtx, vector, s.clampTopK(topK))
	if err != nil {
		logger.Error("vector search failed", zap.Error(err))
		return nil, "", fmt.Errorf("%w: vector search: %v", appErr.ErrUpstream, err)
	}
	logger.Debug("chunks retrieved", zap.Int("count", len(hits)))
	sources := s.normalizeSources(hits)
	return sources, buildContext(sources), nil
}

func (s *AssistantService) clampTopK(topK int) int {
	if topK <= 0 {
		return s.opts.TopK
	}
	if topK > maxTopK {
		return maxTopK
	}
	return topK
}

func (s *AssistantService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return ctx, func() {}
}

func (s *AssistantService) generate(ctx context.Context, messages []ai.Message) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	text, err := s.chat.Chat(ctx, messages, ai.ChatOptions{Temperature: answerTemperature})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (s *AssistantService) normalizeSources(hits []vectorstore.Chunk) []model.Source {
	sources := make([]model.Source, 0, len(hits))
	for _, hit := range hits {
		text := strings.TrimSpace(hit.Text)
		snippet := text
		if runes := []rune(text); len(runes) > s.opts.SnippetChars {
			snippet = string(runes[:s.opts.SnippetChars]) + "..."
		}
		title := hit.Title
		if title == "" {
			title = defaultSourceTitle
		}
		sources = append(sources, model.Source{
			Title:   title,
			URL:     hit.SourceURL,
			DocPath: hit.DocPath,
			Section: strings.Join(hit.HeaderPath, " / "),
			Score:   hit.Score,
			Snippet: snippet,
		})
	}
	return sources
}

func buildContext(sources []model.Source) string {
	blocks := make([]string, 0, len(sources))
	for i, src := range sources {
		section := src.Section
		if section == "" {
			section = "-"
		}
		url := src.URL
		if url == "" {
			url = "-"
		}
		snippet := src.Snippet
		if snippet == "" {
			snippet = "-"
		}
		blocks = append(blocks, fmt.Sprintf("[S%d] %s\nsection: %s\nurl: %s\ntext: %s",
			i+1, src.Title, section, url, snippet))
	}
	return strings.Join(blocks, "\n\n")
}

func buildMessages(question string, history []ai.Message, contextBlock string) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, turn := range history {
		if turn.Role != ai.RoleUser && turn.Role != ai.RoleAssistant {
			continue
		}
		messages = append(messages, turn)
	}
	messages = append(messages, ai.Message{
		Role: ai.RoleUser,
		Content: fmt.Sprintf("User question:\n%s\n\nContext from the knowledge base:\n%s",
			question, contextBlock),
	})
	return messages
}

func (s *AssistantService) generateFollowups(ctx context.Context, question, answer string, sources []model.Source) []string {
	titles := make([]string, 0, 4)
	for _, src := range sources {
		if src.Title == "" {
			continue
		}
		titles = append(titles, src.Title)
		if len(titles) >= 4 {
			break
		}
	}
	prompt := fmt.Sprintf(`Generate %d short follow-up questions a user may ask about the answer below.
Return strictly a JSON object of the form {"followups":["..."]} with no commentary.
Use the same language as the original question.
Original question: %s
Assistant answer: %s
Sources: %s`, maxFollowups, question, answer, strings.Join(titles, ", "))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	raw, err := s.chat.Chat(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}}, ai.ChatOptions{
		Temperature: followupTemperature,
		JSONOutput:  true,
	})
	if err != nil {
		logutil.GetLogger(ctx).Warn("followup generation failed", zap.Error(err))
		return defaultFollowups()
	}
	followups, err := parseFollowups(raw)
	if err != nil {
		logutil.GetLogger(ctx).Warn("followup parse failed", zap.Error(err))
		return defaultFollowups()
	}
	return followups
}

func parseFollowups(output string) ([]string, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	var parsed struct {
		Followups []string `json:"followups"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("parse followups: %w", err)
	}
	out := make([]string, 0, maxFollowups)
	for _, item := range parsed.Followups {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
		if len(out) >= maxFollowups {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no followups found")
	}
	return out, nil
}

func defaultFollowups() []string {
	return []string{
		"What are the exact steps to set this up?",
		"What are the common errors and how do I fix them?",
		"Can you show a minimal working configuration example?",
		"Which versions and components need to be installed?",
	}
}
