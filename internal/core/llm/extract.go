package llm

import (
	"encoding/json"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/lexcora/rased/internal/models"
)

// textRecognizer tries to read the text increment out of one chunk shape.
// ok is false when the chunk does not have that shape.
type textRecognizer func(chunk any) (text string, ok bool)

// Tried in order; the first shape that matches wins.
var chunkTextRecognizers = []textRecognizer{
	directTextField,
	textAccessor,
	candidateParts,
}

// ExtractChunkText returns the text carried by a streamed chunk, whatever
// transport produced it. Unknown shapes yield "".
func ExtractChunkText(chunk any) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	if chunk == nil {
		return ""
	}
	for _, recognize := range chunkTextRecognizers {
		if t, ok := recognize(chunk); ok {
			return t
		}
	}
	return ""
}

func directTextField(chunk any) (string, bool) {
	m, ok := chunk.(map[string]any)
	if !ok {
		return "", false
	}
	t, ok := m["text"].(string)
	return t, ok
}

func textAccessor(chunk any) (string, bool) {
	switch c := chunk.(type) {
	case interface{ Text() string }:
		return c.Text(), true
	case map[string]any:
		if fn, ok := c["text"].(func() string); ok && fn != nil {
			return fn(), true
		}
	}
	return "", false
}

func candidateParts(chunk any) (string, bool) {
	switch c := chunk.(type) {
	case *genai.GenerateContentResponse:
		if c == nil {
			return "", false
		}
		return sdkCandidateText(c), true
	case genai.GenerateContentResponse:
		return sdkCandidateText(&c), true
	case map[string]any:
		if _, ok := c["candidates"]; !ok {
			return "", false
		}
		return jsonCandidateText(c), true
	}
	return "", false
}

func sdkCandidateText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func jsonCandidateText(resp map[string]any) string {
	content := field(firstCandidate(resp), "content")
	var b strings.Builder
	for _, p := range list(content, "parts") {
		if t, ok := field(p, "text").(string); ok {
			b.WriteString(t)
		}
	}
	return b.String()
}

// ParseGrounding collects web citations from
// candidates[0].groundingMetadata.groundingChunks[].web of a final response.
// Missing or malformed metadata at any level yields an empty, non-nil list.
func ParseGrounding(response any) (sources []models.Source) {
	sources = []models.Source{}
	defer func() {
		if recover() != nil {
			sources = []models.Source{}
		}
	}()

	switch r := response.(type) {
	case json.RawMessage:
		return parseRawGrounding(r)
	case []byte:
		return parseRawGrounding(r)
	case map[string]any:
		meta := field(firstCandidate(r), "groundingMetadata")
		for _, gc := range list(meta, "groundingChunks") {
			web := field(gc, "web")
			title, _ := field(web, "title").(string)
			uri, _ := field(web, "uri").(string)
			if title == "" || uri == "" {
				continue
			}
			sources = append(sources, models.Source{Title: title, URI: uri})
		}
	}
	return sources
}

func parseRawGrounding(raw []byte) []models.Source {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return []models.Source{}
	}
	return ParseGrounding(decoded)
}

func firstCandidate(resp map[string]any) any {
	candidates := list(resp, "candidates")
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

// field reads key from v when v is a JSON object.
func field(v any, key string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

// list reads key from v when v is a JSON object holding an array there.
func list(v any, key string) []any {
	arr, _ := field(v, key).([]any)
	return arr
}
