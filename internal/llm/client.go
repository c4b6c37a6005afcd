// Package llm is the language-model oracle used to classify free-form
// chat text and to drive the open-ended assistant.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in an oracle conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client completes an oracle request.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// StaticClient replies with the same text to every request. It backs the
// offline classify tool and tests.
type StaticClient struct {
	Text string
	Err  error
}

func (c StaticClient) Complete(context.Context, Request) (Response, error) {
	if c.Err != nil {
		return Response{}, c.Err
	}
	return Response{Text: c.Text}, nil
}
