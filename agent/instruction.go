package agent

import (
	"context"

	"github.com/hupe1980/agentswarm/core"
	"github.com/hupe1980/agentswarm/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from the delivered message,
// environment, etc.
type Provider interface {
	Instruction(ctx context.Context, msg core.Message) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, msg core.Message) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, msg core.Message) (string, error) { return f(ctx, msg) }

// Instruction represents either a static instruction string or a dynamic
// provider. This mirrors a union of string | provider in a Go-idiomatic way.
// Static text may contain Go template markers resolved against the delivered
// message ({{.input}}, {{.sender}}).
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, msg core.Message) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider or rendering
// the static template as needed.
func (i Instruction) Resolve(ctx context.Context, msg core.Message) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, msg)
	}
	return util.RenderTemplate(i.text, map[string]any{
		"input":  msg.Text(),
		"sender": msg.Sender,
	})
}
