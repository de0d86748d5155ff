package core

import "context"

// Blob is raw binary content sent inline with a request.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one piece of a message: either text or an inline blob.
type Part struct {
	Text string
	Blob *Blob
}

// Content is one turn sent upstream. Role is "user" or "model".
type Content struct {
	Role  string
	Parts []Part
}

// CompletionRequest describes a single generation call.
type CompletionRequest struct {
	Model             string
	SystemInstruction string
	Contents          []Content
	Temperature       float32
	// GoogleSearch enables web-search grounding where the transport supports it.
	GoogleSearch bool
}

// CompletionStream yields raw upstream chunks. Chunks are transport specific
// values (decoded JSON, SDK structs) and are read with llm.ExtractChunkText.
type CompletionStream interface {
	// Recv returns the next chunk, or io.EOF once the upstream is drained.
	Recv() (any, error)
	// Final returns the aggregated response once Recv has returned io.EOF.
	Final() (any, error)
	Close() error
}

type LLMProvider interface {
	StreamGenerate(ctx context.Context, req *CompletionRequest) (CompletionStream, error)
}
