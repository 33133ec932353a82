// Package agent runs conversation turns: it drives the LLM, validates and
// executes tool calls, and streams typed events back to the transport.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/solpilot/solpilot/internal/config"
	"github.com/solpilot/solpilot/internal/schema"
	"github.com/solpilot/solpilot/internal/session"
	"github.com/solpilot/solpilot/internal/shared/llmutils"
	"github.com/solpilot/solpilot/internal/tools"
)

// Dispatcher executes the LLM ↔ tool iteration loop for one turn at a time.
// It is stateless across turns; all conversation state lives in the session.
type Dispatcher struct {
	provider schema.LLMProvider
	registry *tools.Registry
	persona  *Persona
	cfg      config.AgentConfig
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(provider schema.LLMProvider, registry *tools.Registry, persona *Persona, cfg config.AgentConfig) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		registry: registry,
		persona:  persona,
		cfg:      cfg,
	}
}

// RunTurn executes one user turn against sess and returns the event stream.
//
// The channel carries zero or more text-delta, reasoning-delta,
// tool-call-start and tool-call-result events, and is closed after at most
// one terminal event. If ctx is cancelled mid-turn the stream closes without
// a terminal event and nothing further is appended to the session.
func (d *Dispatcher) RunTurn(ctx context.Context, sess *session.Session, userMessage string, turn tools.TurnContext) <-chan schema.Event {
	events := make(chan schema.Event, 64)
	go func() {
		defer close(events)
		d.runTurn(ctx, sess, userMessage, turn, events)
	}()
	return events
}

func (d *Dispatcher) runTurn(ctx context.Context, sess *session.Session, userMessage string, turn tools.TurnContext, events chan<- schema.Event) {
	if err := sess.BeginTurn(); err != nil {
		events <- schema.TurnErrorEvent(err.Error())
		return
	}
	defer sess.EndTurn()

	// parent outlives the turn deadline: terminal delivery keys off the
	// client's context, not ours, so a slow reader still gets its closing
	// event after a turn timeout.
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, d.cfg.TurnTimeout())
	defer cancel()
	ctx = tools.WithTurn(ctx, turn)

	send := func(ev schema.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	conversation := schema.NewMessages()
	if d.persona != nil {
		conversation.AddSystem(d.persona.System(turn.WalletAddress))
	}
	conversation.Append(sess.History(d.cfg.MemoryWindow))
	conversation.AddUser(userMessage)
	sess.AddUser(userMessage)

	var toolsUsed []string

	for i := 0; i < d.cfg.MaxIter; i++ {
		resp, err := d.provider.Chat(ctx, conversation, d.registry.Definitions(),
			schema.NewChatOptions(d.cfg.Model, d.cfg.MaxTokens, d.cfg.Temperature))
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				// The client went away; nobody is reading the stream.
				return
			}
			slog.Error("llm call failed", "session", sess.Key, "err", err)
			d.sendTerminal(parent, events, schema.TurnErrorEvent(friendlyTurnError(ctx, err)))
			return
		}

		if resp.ReasoningContent != nil {
			for _, chunk := range llmutils.SplitDeltas(*resp.ReasoningContent) {
				if !send(schema.ReasoningDeltaEvent(chunk)) {
					d.abandon(parent, ctx, events)
					return
				}
			}
		}

		text := ""
		if resp.Content != nil {
			text = llmutils.StripThink(*resp.Content)
		}
		for _, chunk := range llmutils.SplitDeltas(text) {
			if !send(schema.TextDeltaEvent(chunk)) {
				d.abandon(parent, ctx, events)
				return
			}
		}

		if len(resp.ToolCalls) == 0 {
			sess.AddAssistantFinal(text, toolsUsed)
			d.sendTerminal(parent, events, schema.TurnEndEvent("stop"))
			return
		}

		calls := d.assignCallIDs(sess, resp.ToolCalls)

		var toolCalls []schema.ToolCall
		for _, tc := range calls {
			toolCalls = append(toolCalls, schema.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
			toolsUsed = append(toolsUsed, tc.Name)
		}
		conversation.AddAssistant(resp.Content, toolCalls, resp.ReasoningContent)
		if err := sess.AddAssistant(resp.Content, toolCalls, resp.ReasoningContent); err != nil {
			d.sendTerminal(parent, events, schema.TurnErrorEvent(err.Error()))
			return
		}

		for _, tc := range calls {
			if !send(schema.ToolCallStartEvent(tc.ID, tc.Name, tc.Arguments)) {
				d.abandon(parent, ctx, events)
				return
			}
		}

		results := d.executeAll(ctx, calls)

		for i, tc := range calls {
			if !send(schema.ToolCallResultEvent(tc.ID, tc.Name, results[i])) {
				d.abandon(parent, ctx, events)
				return
			}
			conversation.AddToolResult(tc.ID, tc.Name, results[i])
			if err := sess.AddToolResult(tc.ID, tc.Name, results[i]); err != nil {
				slog.Warn("tool result dropped from session", "session", sess.Key, "err", err)
			}
		}
	}

	const exhausted = "I've reached the maximum number of tool iterations without a final answer."
	for _, chunk := range llmutils.SplitDeltas(exhausted) {
		if !send(schema.TextDeltaEvent(chunk)) {
			d.abandon(parent, ctx, events)
			return
		}
	}
	sess.AddAssistantFinal(exhausted, toolsUsed)
	d.sendTerminal(parent, events, schema.TurnEndEvent("max-iterations"))
}

// assignCallIDs gives every tool call a session-unique ID. Calls arriving
// without an ID, reusing one from the same batch, or reusing one the session
// has already seen in an earlier iteration get a fresh UUID so correlation
// between start and result events stays unambiguous.
func (d *Dispatcher) assignCallIDs(sess *session.Session, calls []schema.ToolCallRequest) []schema.ToolCallRequest {
	seen := make(map[string]bool, len(calls))
	out := make([]schema.ToolCallRequest, len(calls))
	for i, tc := range calls {
		if tc.ID == "" || seen[tc.ID] || sess.HasCallID(tc.ID) {
			tc.ID = "call_" + uuid.NewString()
		}
		seen[tc.ID] = true
		out[i] = tc
	}
	return out
}

// executeAll runs the batch of tool calls concurrently and returns their
// results in request order. Every call produces a result string: validation
// rejections, execution errors, timeouts, and panics all become tagged
// failure payloads rather than aborting the batch or the turn.
func (d *Dispatcher) executeAll(ctx context.Context, calls []schema.ToolCallRequest) []string {
	results := make([]string, len(calls))
	g := new(errgroup.Group)

	for i, tc := range calls {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("tool panicked", "tool", tc.Name, "panic", r)
					results[i] = schema.Failure(schema.ErrUnknown, fmt.Sprintf("tool %s failed unexpectedly", tc.Name))
				}
			}()

			tool, ok := d.registry.Resolve(tc.Name)
			if !ok {
				results[i] = schema.Failure(schema.ErrUnknown, fmt.Sprintf("tool %q is not available", tc.Name))
				return nil
			}

			if err := tools.ValidateParams(tool, tc.Arguments); err != nil {
				results[i] = schema.Failure(schema.ErrValidation, err.Error())
				return nil
			}

			tctx, cancel := context.WithTimeout(ctx, d.cfg.ToolTimeout())
			defer cancel()

			slog.Info("tool call", "name", tc.Name, "args", llmutils.Truncate(fmt.Sprintf("%v", tc.Arguments), 200))
			out, err := tool.Execute(tctx, tc.Arguments)
			if err != nil {
				results[i] = tools.FailureFromError(err)
				return nil
			}
			results[i] = out
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// sendTerminal delivers the turn's closing event. It blocks until a lagging
// reader catches up; the only way a stream closes without its terminal event
// is the client abandoning the turn, which cancels parent.
func (d *Dispatcher) sendTerminal(parent context.Context, events chan<- schema.Event, ev schema.Event) {
	select {
	case events <- ev:
	case <-parent.Done():
	}
}

// abandon closes out a turn whose deadline expired mid-stream. A cancelled
// turn closes silently; an expired deadline still owes the stream a terminal
// error.
func (d *Dispatcher) abandon(parent context.Context, ctx context.Context, events chan<- schema.Event) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		d.sendTerminal(parent, events, schema.TurnErrorEvent(turnTimeoutMsg))
	}
}

const turnTimeoutMsg = "the turn timed out before the model finished"

func friendlyTurnError(ctx context.Context, err error) string {
	if ctx.Err() == context.DeadlineExceeded {
		return turnTimeoutMsg
	}
	return fmt.Sprintf("the language model request failed: %v", err)
}
