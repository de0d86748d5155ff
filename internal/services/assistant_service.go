package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lexcora/rased/internal/core"
	"github.com/lexcora/rased/internal/core/llm"
	"github.com/lexcora/rased/internal/metrics"
	"github.com/lexcora/rased/internal/models"
)

var (
	// ErrNotConfigured means no upstream credential was provided at startup.
	ErrNotConfigured = errors.New("assistant upstream is not configured")
	// ErrNothingToAnalyze means neither text nor a usable document was given.
	ErrNothingToAnalyze = errors.New("nothing to analyze")
)

// Texts returned to clients in place of upstream output.
const (
	ConfigurationMissingText = "Service configuration missing."
	NoResponseText           = "No response generated."
	AssistantUnavailableText = "Error connecting to legal database."
	AnalysisFailedText       = "Analysis failed."
	AnalysisUnavailableText  = "The document analysis service is temporarily unavailable."
	NothingToAnalyzeText     = "Provide text or document for analysis."
)

// ModelProfile is the upstream configuration used for one kind of call.
type ModelProfile struct {
	Model       string
	Temperature float32
	Search      bool
}

type Options struct {
	Assistant ModelProfile
	Chat      ModelProfile
	Analysis  ModelProfile
}

func DefaultOptions() Options {
	return Options{
		Assistant: ModelProfile{Model: "gemini-3-flash-preview", Temperature: 0.1, Search: true},
		Chat:      ModelProfile{Model: "gemini-3-pro-preview", Temperature: 0.3, Search: true},
		Analysis:  ModelProfile{Model: "gemini-3-pro-preview", Temperature: 0.1},
	}
}

// Assistant is the only component that talks to the model upstream. A nil
// provider leaves it unconfigured: every call degrades to a fixed notice.
type Assistant struct {
	provider  core.LLMProvider
	extractor core.DocumentExtractor
	opts      Options
	metrics   *metrics.Metrics
}

func NewAssistant(provider core.LLMProvider, extractor core.DocumentExtractor, opts Options, m *metrics.Metrics) *Assistant {
	return &Assistant{provider: provider, extractor: extractor, opts: opts, metrics: m}
}

func (a *Assistant) Configured() bool {
	return a.provider != nil
}

// Respond answers a single legal question with web grounding.
func (a *Assistant) Respond(ctx context.Context, query string, lang models.Lang) models.AssistantResponse {
	if !a.Configured() {
		return models.AssistantResponse{Text: ConfigurationMissingText, Sources: []models.Source{}}
	}

	text, sources, err := a.complete(ctx, a.chatRequest(a.opts.Assistant, lang, nil, query))
	if err != nil {
		a.upstreamFailed("assistant", err)
		return models.AssistantResponse{Text: AssistantUnavailableText, Sources: []models.Source{}}
	}
	if text == "" {
		text = NoResponseText
	}
	return models.AssistantResponse{Text: text, Sources: sources}
}

// Analyze returns a structured analysis of text and/or an attached document.
func (a *Assistant) Analyze(ctx context.Context, text string, lang models.Lang, doc *models.InlineDocument) string {
	if strings.TrimSpace(text) == "" && !doc.Usable() {
		return NothingToAnalyzeText
	}
	if !a.Configured() {
		return ConfigurationMissingText
	}

	req, err := a.analysisRequest(ctx, text, lang, doc)
	if err != nil {
		a.upstreamFailed("analyze", err)
		return AnalysisUnavailableText
	}
	out, _, err := a.complete(ctx, req)
	if err != nil {
		a.upstreamFailed("analyze", err)
		return AnalysisUnavailableText
	}
	if out == "" {
		return AnalysisFailedText
	}
	return out
}

// Converse sends message after history and returns the reply. Unlike
// Respond it reports failures so the caller can keep its history intact.
func (a *Assistant) Converse(ctx context.Context, lang models.Lang, history []models.ChatTurn, message string) (models.AssistantResponse, error) {
	if !a.Configured() {
		return models.AssistantResponse{}, ErrNotConfigured
	}
	text, sources, err := a.complete(ctx, a.chatRequest(a.opts.Chat, lang, history, message))
	if err != nil {
		a.upstreamFailed("chat", err)
		return models.AssistantResponse{}, fmt.Errorf("converse: %w", err)
	}
	return models.AssistantResponse{Text: text, Sources: sources}, nil
}

// StreamRespond streams an assistant answer token by token.
func (a *Assistant) StreamRespond(ctx context.Context, query string, lang models.Lang, history []models.ChatTurn) (*TokenStream, error) {
	return a.open(ctx, "assistant", a.chatRequest(a.opts.Assistant, lang, history, query))
}

// StreamChat streams the next chat reply.
func (a *Assistant) StreamChat(ctx context.Context, message string, lang models.Lang, history []models.ChatTurn) (*TokenStream, error) {
	return a.open(ctx, "chat", a.chatRequest(a.opts.Chat, lang, history, message))
}

// StreamAnalyze streams an analysis. Its Sources are always empty.
func (a *Assistant) StreamAnalyze(ctx context.Context, text string, lang models.Lang, doc *models.InlineDocument) (*TokenStream, error) {
	if strings.TrimSpace(text) == "" && !doc.Usable() {
		return nil, ErrNothingToAnalyze
	}
	if !a.Configured() {
		return nil, ErrNotConfigured
	}
	req, err := a.analysisRequest(ctx, text, lang, doc)
	if err != nil {
		a.upstreamFailed("analyze", err)
		return nil, err
	}
	return a.open(ctx, "analyze", req)
}

// open starts a stream that counts its own mid-stream failures under
// operation.
func (a *Assistant) open(ctx context.Context, operation string, req *core.CompletionRequest) (*TokenStream, error) {
	if !a.Configured() {
		return nil, ErrNotConfigured
	}
	stream, err := a.provider.StreamGenerate(ctx, req)
	if err != nil {
		a.upstreamFailed(operation, err)
		return nil, fmt.Errorf("%s: open stream: %w", operation, err)
	}
	return &TokenStream{stream: stream, operation: operation, metrics: a.metrics}, nil
}

// complete drains one upstream call. Failures are left to the caller.
func (a *Assistant) complete(ctx context.Context, req *core.CompletionRequest) (string, []models.Source, error) {
	stream, err := a.provider.StreamGenerate(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("open stream: %w", err)
	}
	ts := &TokenStream{stream: stream}
	defer ts.Close()

	var b strings.Builder
	for {
		tok, err := ts.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}
		b.WriteString(tok)
	}
	return b.String(), ts.Sources(), nil
}

func (a *Assistant) upstreamFailed(operation string, err error) {
	log.Error().Err(err).Str("operation", operation).Msg("upstream call failed")
	a.metrics.UpstreamError(operation)
}

func (a *Assistant) chatRequest(p ModelProfile, lang models.Lang, history []models.ChatTurn, message string) *core.CompletionRequest {
	contents := make([]core.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, core.Content{
			Role:  string(turn.Role),
			Parts: []core.Part{{Text: turn.Text}},
		})
	}
	contents = append(contents, core.Content{Role: string(models.RoleUser), Parts: []core.Part{{Text: message}}})

	return &core.CompletionRequest{
		Model:             p.Model,
		SystemInstruction: SystemInstruction(lang, TaskChat),
		Contents:          contents,
		Temperature:       p.Temperature,
		GoogleSearch:      p.Search,
	}
}

func (a *Assistant) analysisRequest(ctx context.Context, text string, lang models.Lang, doc *models.InlineDocument) (*core.CompletionRequest, error) {
	var parts []core.Part
	if strings.TrimSpace(text) != "" {
		parts = append(parts, core.Part{Text: "DOCUMENT FOR ANALYSIS:\n\n" + text})
	}
	if doc.Usable() {
		part, err := a.documentPart(ctx, doc)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		parts = append(parts, core.Part{Text: "Analyze the attached document."})
	}

	return &core.CompletionRequest{
		Model:             a.opts.Analysis.Model,
		SystemInstruction: SystemInstruction(lang, TaskAnalysis),
		Contents:          []core.Content{{Role: string(models.RoleUser), Parts: parts}},
		Temperature:       a.opts.Analysis.Temperature,
		GoogleSearch:      a.opts.Analysis.Search,
	}, nil
}

// documentPart forwards the attachment inline, or as extracted text for
// office formats the upstream cannot read.
func (a *Assistant) documentPart(ctx context.Context, doc *models.InlineDocument) (core.Part, error) {
	data, err := base64.StdEncoding.DecodeString(doc.Data)
	if err != nil {
		return core.Part{}, fmt.Errorf("decode document %q: %w", doc.Name, err)
	}

	if a.extractor != nil && a.extractor.Supports(doc.MimeType) {
		text, err := a.extractor.ExtractText(ctx, data, doc.MimeType)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("mime_type", doc.MimeType).Msg("document extraction failed, forwarding inline")
		case text != "":
			label := "ATTACHED DOCUMENT"
			if doc.Name != "" {
				label += " (" + doc.Name + ")"
			}
			return core.Part{Text: label + ":\n\n" + text}, nil
		}
	}

	return core.Part{Blob: &core.Blob{MIMEType: doc.MimeType, Data: data}}, nil
}

// TokenStream yields the non-empty text increments of one upstream call.
// Sources is meaningful once Next has returned io.EOF.
type TokenStream struct {
	stream    core.CompletionStream
	operation string
	metrics   *metrics.Metrics

	last    any
	sources []models.Source
}

func (t *TokenStream) Next() (string, error) {
	for {
		chunk, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			t.finish()
			return "", io.EOF
		}
		if err != nil {
			if t.operation != "" {
				t.metrics.UpstreamError(t.operation)
			}
			return "", err
		}
		t.last = chunk
		if text := llm.ExtractChunkText(chunk); text != "" {
			return text, nil
		}
	}
}

func (t *TokenStream) finish() {
	final, err := t.stream.Final()
	if err != nil || final == nil {
		final = t.last
	}
	t.sources = llm.ParseGrounding(final)
}

// Sources returns the citations of the final response, never nil.
func (t *TokenStream) Sources() []models.Source {
	if t.sources == nil {
		return []models.Source{}
	}
	return t.sources
}

func (t *TokenStream) Close() error {
	return t.stream.Close()
}
