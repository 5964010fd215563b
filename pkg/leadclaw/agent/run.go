// Package agent – run.go is the bounded tool-calling loop: call the model,
// execute requested tools, feed results back, repeat until the model answers
// in plain text or the step budget runs out.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when the loop finishes without any usable
// assistant text.
var ErrEmptyResponse = errors.New("agent: model produced no response text")

// DefaultMaxSteps bounds of the number of model round-trips in one run.
const DefaultMaxSteps = 10

// ToolInvocation is one executed tool call recorded in the run transcript.
type ToolInvocation struct {
	Step      int             `json:"step"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    string          `json:"output"`
	Duration  time.Duration   `json:"duration"`
}

// RunResult is the outcome of one assistant run.
type RunResult struct {
	Text       string
	Steps      int
	Transcript []ToolInvocation
	Usage      Usage
}

// Runner drives the loop over one model client and one tool registry.
type Runner struct {
	llm      *LLMClient
	executor *Executor
	maxSteps int
	logger   *slog.Logger
}

// NewRunner wires a runner. maxSteps <= 0 selects DefaultMaxSteps.
func NewRunner(llm *LLMClient, executor *Executor, maxSteps int, logger *slog.Logger) *Runner {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		llm:      llm,
		executor: executor,
		maxSteps: maxSteps,
		logger:   logger.With("component", "agent"),
	}
}

// Run executes the loop. The system prompt is prepended; conversation holds
// the assembled context including the newest user turn.
func (r *Runner) Run(ctx context.Context, systemPrompt string, conversation []Message) (*RunResult, error) {
	msgs := make([]Message, 0, len(conversation)+1)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, conversation...)

	result := &RunResult{}
	tools := r.executor.Definitions()

	for step := 1; step <= r.maxSteps; step++ {
		result.Steps = step
		completion, err := r.llm.Complete(ctx, msgs, tools)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
		accumulateUsage(&result.Usage, completion.Usage)

		reply := completion.Message
		if len(reply.ToolCalls) == 0 {
			text := strings.TrimSpace(reply.Content)
			if text == "" {
				return nil, ErrEmptyResponse
			}
			result.Text = text
			return result, nil
		}

		msgs = append(msgs, reply)
		for _, call := range reply.ToolCalls {
			start := time.Now()
			toolMsg := r.executor.Execute(ctx, call)
			msgs = append(msgs, toolMsg)
			result.Transcript = append(result.Transcript, ToolInvocation{
				Step:      step,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
				Output:    toolMsg.Content,
				Duration:  time.Since(start),
			})
		}
	}

	// Budget spent: ask once more without tools so the model has to answer.
	r.logger.Warn("step budget exhausted, forcing final answer", "max_steps", r.maxSteps)
	completion, err := r.llm.Complete(ctx, msgs, nil)
	if err != nil {
		return nil, fmt.Errorf("final step: %w", err)
	}
	accumulateUsage(&result.Usage, completion.Usage)

	text := strings.TrimSpace(completion.Message.Content)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	result.Text = text
	return result, nil
}

func accumulateUsage(total *Usage, u Usage) {
	total.PromptTokens += u.PromptTokens
	total.CompletionTokens += u.CompletionTokens
	total.TotalTokens += u.TotalTokens
}
