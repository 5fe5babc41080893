// Package agent implements the wine concierge's conversational core: a state
// graph that routes each user turn to a tool and composes the reply.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/vinoflow/concierge/graph"
	"github.com/vinoflow/concierge/llm"
	"github.com/vinoflow/concierge/retrieval"
	"github.com/vinoflow/concierge/search"
)

// Graph node names.
const (
	nodeRoute             = "route"
	nodeDocumentRetrieval = "document_retrieval"
	nodeWebSearch         = "web_search"
	nodeWeather           = "weather"
	nodeRespond           = "respond"
)

// Retriever answers knowledge base queries.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.ScoredChunk, error)
}

// WeatherService produces weather summaries with pairing advice.
type WeatherService interface {
	Summary(ctx context.Context, location string) (string, error)
}

// WebSearcher answers web queries.
type WebSearcher interface {
	Search(ctx context.Context, query string, numResults int) ([]search.Result, error)
}

// Options configures an Agent.
type Options struct {
	// DefaultLocation is used for weather queries with no location.
	DefaultLocation string
	// Temperature for response generation. Routing always runs at 0.2.
	Temperature float32
	// MaxTokens caps response length.
	MaxTokens int
	// SearchResults is the number of hits fetched per web search.
	SearchResults int
}

// Agent answers wine questions by routing each turn through a tool graph.
type Agent struct {
	llm       llm.Client
	retriever Retriever
	weather   WeatherService
	searcher  WebSearcher
	opts      Options
	workflow  *graph.Compiled[*State]
}

// New creates an Agent. All tool dependencies are required; opts fields fall
// back to sensible defaults when zero.
func New(client llm.Client, retriever Retriever, weather WeatherService, searcher WebSearcher, opts Options) (*Agent, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.DefaultLocation == "" {
		opts.DefaultLocation = "Napa,CA,US"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.SearchResults <= 0 {
		opts.SearchResults = 3
	}

	a := &Agent{
		llm:       client,
		retriever: retriever,
		weather:   weather,
		searcher:  searcher,
		opts:      opts,
	}

	workflow, err := a.buildWorkflow()
	if err != nil {
		return nil, fmt.Errorf("building workflow: %w", err)
	}
	a.workflow = workflow
	return a, nil
}

func (a *Agent) buildWorkflow() (*graph.Compiled[*State], error) {
	g := graph.NewStateGraph[*State]()

	g.AddNode(nodeRoute, a.route)
	g.AddNode(nodeDocumentRetrieval, a.retrieveDocuments)
	g.AddNode(nodeWebSearch, a.performWebSearch)
	g.AddNode(nodeWeather, a.getWeather)
	g.AddNode(nodeRespond, a.respond)

	err := g.AddConditionalEdges(nodeRoute,
		func(_ context.Context, s *State) (string, error) {
			return string(s.Tool), nil
		},
		map[string]string{
			string(ToolDocumentRetrieval): nodeDocumentRetrieval,
			string(ToolWebSearch):         nodeWebSearch,
			string(ToolWeather):           nodeWeather,
			string(ToolRespond):           nodeRespond,
		})
	if err != nil {
		return nil, err
	}

	for _, tool := range []string{nodeDocumentRetrieval, nodeWebSearch, nodeWeather} {
		if err := g.AddEdge(tool, nodeRespond); err != nil {
			return nil, err
		}
	}
	if err := g.AddEdge(nodeRespond, graph.End); err != nil {
		return nil, err
	}
	if err := g.SetEntryPoint(nodeRoute); err != nil {
		return nil, err
	}

	return g.Compile()
}

// route asks the model which tool to use. An empty conversation or an
// unusable model answer selects respond.
func (a *Agent) route(ctx context.Context, s *State) (*State, error) {
	userMessage := s.LastUserMessage()
	if userMessage == "" {
		s.Tool = ToolRespond
		return s, nil
	}

	raw, err := a.llm.Chat(ctx, []llm.ChatMessage{
		{Role: RoleSystem, Content: routerPrompt},
		{Role: RoleUser, Content: userMessage},
	}, llm.Options{Temperature: 0.2})
	if err != nil {
		log.Printf("agent: routing failed, responding directly: %v", err)
		s.Tool = ToolRespond
		return s, nil
	}

	sel := ParseToolSelection(raw)
	s.Tool = sel.Tool
	s.ToolInput = sel.ToolInput
	log.Printf("agent: selected tool %s", s.Tool)
	return s, nil
}

// retrieveDocuments queries the knowledge base. Failures become context text
// rather than errors so the responder can still answer.
func (a *Agent) retrieveDocuments(ctx context.Context, s *State) (*State, error) {
	query := s.ToolInput
	if query == "" {
		query = s.LastUserMessage()
	}

	if a.retriever == nil {
		s.Context = "The knowledge base is not available."
		return s, nil
	}

	chunks, err := a.retriever.Search(ctx, query, retrieval.DefaultTopK)
	if err != nil {
		log.Printf("agent: document retrieval failed: %v", err)
		s.Context = "Error retrieving documents. Please try again."
		return s, nil
	}

	var sb strings.Builder
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Document %d:\n%s", i+1, c.Chunk.Content)
	}
	s.Context = sb.String()
	return s, nil
}

func (a *Agent) performWebSearch(ctx context.Context, s *State) (*State, error) {
	query := s.ToolInput
	if query == "" {
		query = s.LastUserMessage()
	}

	if a.searcher == nil {
		s.Context = "Web search is not available."
		return s, nil
	}

	results, err := a.searcher.Search(ctx, query, a.opts.SearchResults)
	if err != nil {
		log.Printf("agent: web search failed: %v", err)
		s.Context = "Error performing web search. Please try again."
		return s, nil
	}

	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Result %d: %s\nURL: %s\nSnippet: %s", i+1, r.Title, r.URL, r.Snippet)
	}
	s.Context = sb.String()
	return s, nil
}

func (a *Agent) getWeather(ctx context.Context, s *State) (*State, error) {
	location := s.ToolInput
	if location == "" {
		location = s.Location
	}
	if location == "" {
		location = a.opts.DefaultLocation
	}

	if a.weather == nil {
		s.Context = "Weather information is not available."
		return s, nil
	}

	summary, err := a.weather.Summary(ctx, location)
	if err != nil {
		log.Printf("agent: weather lookup failed: %v", err)
		s.Context = "Error getting weather information. Please try again."
		return s, nil
	}
	s.Context = summary
	return s, nil
}

// respond generates the final answer using the transcript and any tool
// context gathered this turn.
func (a *Agent) respond(ctx context.Context, s *State) (*State, error) {
	var system string
	switch s.Tool {
	case ToolDocumentRetrieval:
		system = retrievalResponsePrompt + s.Context
	case ToolWebSearch:
		system = searchResponsePrompt + s.Context
	case ToolWeather:
		system = weatherResponsePrompt + s.Context
	default:
		system = directResponsePrompt
	}

	chat := make([]llm.ChatMessage, 0, len(s.Messages)+1)
	chat = append(chat, llm.ChatMessage{Role: RoleSystem, Content: system})
	for _, m := range s.Messages {
		chat = append(chat, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}

	reply, err := a.llm.Chat(ctx, chat, llm.Options{
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		return s, fmt.Errorf("generating response: %w", err)
	}

	s.Reply = reply
	s.Messages = append(s.Messages, NewMessage(RoleAssistant, reply))
	return s, nil
}

// Result is the outcome of one conversational turn.
type Result struct {
	// Reply is the assistant's answer.
	Reply string
	// Tool is what the router selected for this turn.
	Tool ToolKind
	// Context is the tool output the reply was grounded in, if any.
	Context string
	// Messages is the updated transcript including the reply.
	Messages []Message
}

// Chat runs one turn: the user message is appended to history, routed
// through the tool graph, and answered. A non-empty location overrides the
// default weather location for this turn only.
func (a *Agent) Chat(ctx context.Context, message string, history []Message, location string) (*Result, error) {
	state := &State{
		Messages: append(append([]Message{}, history...), NewMessage(RoleUser, message)),
		Location: location,
	}

	final, err := a.workflow.Invoke(ctx, state)
	if err != nil {
		return nil, err
	}

	return &Result{
		Reply:    final.Reply,
		Tool:     final.Tool,
		Context:  final.Context,
		Messages: final.Messages,
	}, nil
}

// Recommendation is a wine recommendation with its supporting sources.
type Recommendation struct {
	Recommendation string   `json:"recommendation"`
	Sources        []string `json:"sources"`
}

// Recommend produces a detailed wine recommendation for query, grounded in
// fresh search results when the searcher is available.
func (a *Agent) Recommend(ctx context.Context, query string) (*Recommendation, error) {
	var results []search.Result
	if a.searcher != nil {
		var err error
		results, err = a.searcher.Search(ctx, "wine recommendation "+query, a.opts.SearchResults)
		if err != nil {
			log.Printf("agent: recommendation search failed: %v", err)
		}
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "- %s: %s\n", r.Title, r.Snippet)
	}

	reply, err := a.llm.Chat(ctx, []llm.ChatMessage{
		{Role: RoleUser, Content: fmt.Sprintf(recommendPrompt, query, sb.String())},
	}, llm.Options{
		Temperature: a.opts.Temperature,
		MaxTokens:   a.opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generating recommendation: %w", err)
	}

	rec := &Recommendation{Recommendation: reply}
	for i, r := range results {
		if i >= 3 {
			break
		}
		rec.Sources = append(rec.Sources, r.URL)
	}
	return rec, nil
}
