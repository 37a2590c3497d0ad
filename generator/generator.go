// Package generator produces answers to mathematics questions through a
// pluggable LLM client, wrapping every call in the math-professor persona.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mathsage/mathsage/errors"
	"github.com/mathsage/mathsage/message"
	"github.com/mathsage/mathsage/pkg/logging"
	"github.com/mathsage/mathsage/prompt"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Generate produces a response from the conversation so far.
	Generate(ctx context.Context, messages []*message.Message) (*message.Message, error)

	// SetTemperature updates the temperature setting for generation.
	SetTemperature(temp float64)

	// SetMaxTokens updates the maximum tokens limit for generation.
	SetMaxTokens(max int64)

	// SetModel updates the model to use for generation.
	SetModel(model string)
}

// systemPrompt establishes the persona and the plain-text math formatting
// rules. LaTeX markup renders poorly in chat surfaces, so the rules forbid
// it explicitly.
const systemPrompt = `You are an expert Mathematics Professor with deep knowledge in:
- Calculus (differential and integral)
- Linear Algebra
- Differential Equations
- Real and Complex Analysis
- Probability and Statistics
- Abstract Algebra
- Topology
- Number Theory

When answering questions:
1. Provide step-by-step solutions
2. Explain the reasoning behind each step
3. Use plain text for mathematical expressions (avoid LaTeX commands like \boxed, \text, \mathbb, etc.)
4. Write equations naturally: use "x^2" instead of "x²", "sqrt(x)" instead of "√x"
5. Include examples when helpful
6. Break down complex concepts into understandable parts
7. Be precise and rigorous in mathematical explanations
8. Keep responses conversational and natural
9. Do NOT use $ signs, \boxed{}, or other LaTeX formatting
10. Write mathematics in plain readable text

IMPORTANT: Write all mathematical content in plain text format that's easy to read in a chat interface.`

const followUpSystemPrompt = `You are an expert Mathematics Professor. Maintain context from the conversation and provide clear, step-by-step mathematical explanations.`

// historyWindow is how many trailing messages a follow-up call keeps,
// three full exchanges.
const historyWindow = 6

// Generator wraps a Client with the mathematics tutoring prompts.
type Generator struct {
	client Client
	logger *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Generator backed by the given client.
func New(client Client, opts ...Option) (*Generator, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client is required", errors.ErrInvalidInput)
	}
	g := &Generator{
		client: client,
		logger: logging.WithComponent("generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Answer generates a response to the question, grounding it in the
// supplied context when one is available.
func (g *Generator) Answer(ctx context.Context, question, contextText string) (string, error) {
	b := prompt.NewBuilder()
	if strings.TrimSpace(contextText) != "" {
		b.AddLine("Based on the following context from my knowledge base:")
		b.AddLine("")
		b.AddLine(contextText)
		b.AddLine("")
		b.AddFormat("Please answer this question: %s\n", question)
		b.AddLine("")
		b.Add("Provide a detailed, step-by-step explanation.")
	} else {
		b.AddLine("I couldn't find relevant information in my knowledge base for this question.")
		b.AddLine("")
		b.AddFormat("Question: %s\n", question)
		b.AddLine("")
		b.Add("Please provide a comprehensive, step-by-step explanation using your mathematical expertise.")
	}

	return g.generate(ctx, []*message.Message{
		message.NewMessage(message.RoleSystem, systemPrompt),
		message.NewMessage(message.RoleUser, b.Build()),
	})
}

// FollowUp generates a response that carries conversation context,
// keeping only the trailing history window.
func (g *Generator) FollowUp(ctx context.Context, question string, history []*message.Message) (string, error) {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	msgs := make([]*message.Message, 0, len(history)+2)
	msgs = append(msgs, message.NewMessage(message.RoleSystem, followUpSystemPrompt))
	msgs = append(msgs, message.CloneMessages(history)...)
	msgs = append(msgs, message.NewMessage(message.RoleUser, question))

	return g.generate(ctx, msgs)
}

// Raw sends prepared messages under the math-professor system prompt.
// Used for prompts the caller assembles itself, such as refinements.
func (g *Generator) Raw(ctx context.Context, userPrompt string) (string, error) {
	return g.generate(ctx, []*message.Message{
		message.NewMessage(message.RoleSystem, systemPrompt),
		message.NewMessage(message.RoleUser, userPrompt),
	})
}

func (g *Generator) generate(ctx context.Context, msgs []*message.Message) (string, error) {
	resp, err := g.client.Generate(ctx, msgs)
	if err != nil {
		g.logger.Error("generation failed", "error", err)
		return "", fmt.Errorf("%w: %v", errors.ErrGeneration, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: provider returned empty response", errors.ErrGeneration)
	}
	return resp.Content, nil
}
