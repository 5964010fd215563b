// Package agent – executor.go is the tool registry and dispatcher. Handlers
// receive raw JSON arguments and decode them into their own typed structs;
// handler failures become tool output the model can read, never loop errors.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// defaultToolTimeout bounds a single tool invocation.
const defaultToolTimeout = 30 * time.Second

// Handler executes one tool call. The returned value is serialized as the
// tool message content.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Definition registers one tool: its advertised schema plus its handler.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema object
	Timeout     time.Duration
	Handler     Handler
}

// ArgError marks arguments that failed validation. It is reported to the
// model like any other tool failure.
type ArgError struct {
	Tool   string
	Reason string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

// DecodeArgs unmarshals raw tool arguments into a typed struct. Unknown
// fields are rejected so misspelled argument names surface immediately.
func DecodeArgs[T any](tool string, raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, &ArgError{Tool: tool, Reason: err.Error()}
	}
	return v, nil
}

// Executor holds the registered tools for one assistant profile.
type Executor struct {
	tools  map[string]Definition
	logger *slog.Logger
}

// NewExecutor builds an empty registry.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		tools:  make(map[string]Definition),
		logger: logger.With("component", "tool-executor"),
	}
}

// Register adds a tool. Re-registering a name replaces the old definition.
func (e *Executor) Register(def Definition) {
	if def.Timeout <= 0 {
		def.Timeout = defaultToolTimeout
	}
	e.tools[def.Name] = def
}

// Definitions returns the advertised tool list in stable name order.
func (e *Executor) Definitions() []ToolDefinition {
	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		t := e.tools[name]
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		defs = append(defs, ToolDefinition{
			Type: "function",
			Function: FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return defs
}

// Execute runs one tool call and returns the tool-role message to append to
// the conversation. Failures are folded into the content.
func (e *Executor) Execute(ctx context.Context, call ToolCall) Message {
	name := call.Function.Name
	def, ok := e.tools[name]
	if !ok {
		e.logger.Warn("unknown tool requested", "tool", name)
		return toolMessage(call, fmt.Sprintf("Error: unknown tool %q", name))
	}

	toolCtx, cancel := context.WithTimeout(ctx, def.Timeout)
	defer cancel()

	start := time.Now()
	out, err := e.run(toolCtx, def, json.RawMessage(call.Function.Arguments))
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Warn("tool failed",
			"tool", name,
			"error", err,
			"duration_ms", elapsed.Milliseconds())
		return toolMessage(call, "Error: "+err.Error())
	}

	e.logger.Debug("tool executed", "tool", name, "duration_ms", elapsed.Milliseconds())
	return toolMessage(call, formatToolOutput(out))
}

// run invokes the handler, converting a panic into an error so one broken
// tool cannot take down the event loop.
func (e *Executor) run(ctx context.Context, def Definition, raw json.RawMessage) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", def.Name, r)
		}
	}()
	return def.Handler(ctx, raw)
}

func toolMessage(call ToolCall, content string) Message {
	return Message{
		Role:       "tool",
		Content:    content,
		ToolCallID: call.ID,
	}
}

// formatToolOutput renders a handler result for the model. Strings pass
// through; everything else is JSON.
func formatToolOutput(out any) string {
	switch v := out.(type) {
	case nil:
		return "done"
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
