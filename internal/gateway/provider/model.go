package provider

import "context"

// Message is one chat turn sent to a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message { return Message{Role: "system", Content: content} }
func UserMessage(content string) Message   { return Message{Role: "user", Content: content} }

type ModelProvider interface {
	ID() string
	Enabled() bool
	Call(ctx context.Context, messages []Message) (string, error)
}

type stageKey struct{}

// WithStage tags ctx with the council stage for transcript logging.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

func StageFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(stageKey{}).(string)
	return s
}
