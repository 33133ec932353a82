package schema

// EventKind discriminates the events emitted while a turn streams.
type EventKind string

const (
	EventTextDelta      EventKind = "text-delta"
	EventReasoningDelta EventKind = "reasoning-delta"
	EventToolCallStart  EventKind = "tool-call-start"
	EventToolCallResult EventKind = "tool-call-result"
	EventTurnEnd        EventKind = "turn-end"
	EventTurnError      EventKind = "turn-error"
)

// Event is one element of a turn's output stream.
//
// Exactly one terminal event (turn-end or turn-error) closes every stream.
// Tool results carry the CallID of the tool-call-start they answer; nothing
// else about their ordering is guaranteed.
type Event struct {
	Kind EventKind `json:"kind"`

	// text-delta / reasoning-delta
	Text string `json:"text,omitempty"`

	// tool-call-start and tool-call-result
	CallID   string `json:"callId,omitempty"`
	ToolName string `json:"toolName,omitempty"`

	// tool-call-start
	Arguments map[string]any `json:"arguments,omitempty"`

	// tool-call-result: the tool's JSON payload, verbatim
	Result string `json:"result,omitempty"`

	// turn-end
	Reason string `json:"reason,omitempty"`

	// turn-error
	Error string `json:"error,omitempty"`
}

// Terminal reports whether e closes the stream.
func (e Event) Terminal() bool {
	return e.Kind == EventTurnEnd || e.Kind == EventTurnError
}

func TextDeltaEvent(text string) Event {
	return Event{Kind: EventTextDelta, Text: text}
}

func ReasoningDeltaEvent(text string) Event {
	return Event{Kind: EventReasoningDelta, Text: text}
}

func ToolCallStartEvent(callID, toolName string, args map[string]any) Event {
	return Event{Kind: EventToolCallStart, CallID: callID, ToolName: toolName, Arguments: args}
}

func ToolCallResultEvent(callID, toolName, result string) Event {
	return Event{Kind: EventToolCallResult, CallID: callID, ToolName: toolName, Result: result}
}

func TurnEndEvent(reason string) Event {
	return Event{Kind: EventTurnEnd, Reason: reason}
}

func TurnErrorEvent(cause string) Event {
	return Event{Kind: EventTurnError, Error: cause}
}
