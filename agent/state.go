package agent

import (
	"encoding/json"
	"strings"
)

// ToolKind identifies one of the agent's tools.
type ToolKind string

// Tools the router can select.
const (
	ToolDocumentRetrieval ToolKind = "document_retrieval"
	ToolWebSearch         ToolKind = "web_search"
	ToolWeather           ToolKind = "weather"
	ToolRespond           ToolKind = "respond"
)

// Valid reports whether k names a known tool.
func (k ToolKind) Valid() bool {
	switch k {
	case ToolDocumentRetrieval, ToolWebSearch, ToolWeather, ToolRespond:
		return true
	}
	return false
}

// State is the conversation state threaded through the agent graph.
type State struct {
	// Messages is the transcript, ending with the user's latest message.
	Messages []Message
	// Tool is the router's selection for this turn.
	Tool ToolKind
	// ToolInput is the router's input for the selected tool.
	ToolInput string
	// Location is the caller's weather location for this turn. It is used
	// when the router supplies none, before the configured default.
	Location string
	// Context is the output of the tool that ran, fed to the responder.
	Context string
	// Reply is the assistant's final answer for this turn.
	Reply string
}

// LastUserMessage returns the content of the most recent user message, or ""
// when there is none.
func (s *State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// ToolSelection is the router's decision.
type ToolSelection struct {
	Tool      ToolKind `json:"tool"`
	ToolInput string   `json:"tool_input"`
}

// respondSelection is the fallback when the router's output is unusable.
var respondSelection = ToolSelection{Tool: ToolRespond}

// ParseToolSelection extracts a ToolSelection from raw model output. Code
// fences and surrounding prose are tolerated. Anything unparseable, or a
// selection naming an unknown tool, falls back to respond.
func ParseToolSelection(raw string) ToolSelection {
	text := strings.TrimSpace(raw)

	// Strip a markdown code fence if the model wrapped its answer in one.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.Index(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return respondSelection
	}

	var sel ToolSelection
	if err := json.Unmarshal([]byte(text[start:end+1]), &sel); err != nil {
		return respondSelection
	}
	if !sel.Tool.Valid() {
		return respondSelection
	}
	return sel
}
