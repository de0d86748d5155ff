package models

// Lang selects the language of the system instruction and of the reply.
type Lang string

const (
	LangEN Lang = "en"
	LangAR Lang = "ar"
)

// ParseLang maps anything that is not "ar" to English.
func ParseLang(s string) Lang {
	if Lang(s) == LangAR {
		return LangAR
	}
	return LangEN
}

// Role is the author of a chat turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Source is a web citation taken from upstream grounding metadata.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ChatTurn is one message in a conversation. Turns are never edited after
// they are appended to a session.
type ChatTurn struct {
	Role    Role     `json:"role"`
	Text    string   `json:"text"`
	Sources []Source `json:"sources,omitempty"`
}

// InlineDocument is a base64 attachment forwarded to the model for one
// analysis call. It is never written anywhere.
type InlineDocument struct {
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Usable reports whether the attachment carries both data and a MIME type.
func (d *InlineDocument) Usable() bool {
	return d != nil && d.Data != "" && d.MimeType != ""
}

// AssistantResponse is the buffered reply of the assistant and chat routes.
type AssistantResponse struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// AnalysisResponse is the buffered reply of the analyze route.
type AnalysisResponse struct {
	Text string `json:"text"`
}

// StreamChunk is one NDJSON line of a streamed reply. Exactly one of Text,
// Done or Error is meaningful; Done and Error lines end the stream.
type StreamChunk struct {
	Text    string   `json:"text,omitempty"`
	Done    bool     `json:"done,omitempty"`
	Sources []Source `json:"sources,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Terminal reports whether the chunk closes the stream.
func (c StreamChunk) Terminal() bool {
	return c.Done || c.Error != ""
}
