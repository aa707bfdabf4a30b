package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docchat-cli/docchat/internal/core/domain"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
	"github.com/docchat-cli/docchat/internal/core/ports/driving"
)

// Ensure ChatService implements the interface.
var _ driving.ChatSession = (*ChatService)(nil)

// systemPrompt instructs the model to answer only from retrieved passages
// and to close replies with citation tags quoting results verbatim.
const systemPrompt = `You are an assistant who answers questions about information you retrieve.
Do not answer questions about anything else.
Use only simple markdown to format your responses.

Use the search tool to find relevant information. When you do this, end your
reply with citations in the special XML format:

<citation filename='string' page_number='number'>exact quote here</citation>

Always include the citation in your response if there are results.

The quote must be max 5 words, taken word-for-word from the search result, and is the basis for why the citation is relevant.
Don't refer to the presence of citations; just emit these tags right at the end, with no surrounding text.`

// searchToolName identifies the retrieval tool offered to the model.
const searchToolName = "search"

// maxToolRounds bounds tool-call loops per user turn.
const maxToolRounds = 5

// searchToolParameters is the JSON Schema for the search tool arguments.
var searchToolParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"searchPhrase": {
			"type": "string",
			"description": "The phrase to search for."
		},
		"filenameFilter": {
			"type": "string",
			"description": "If possible, specify the filename to search that file only. If not provided or empty, the search includes all files."
		}
	},
	"required": ["searchPhrase"]
}`)

// searchArgs mirrors the tool's argument object.
type searchArgs struct {
	SearchPhrase   string `json:"searchPhrase"`
	FilenameFilter string `json:"filenameFilter"`
}

// ChatService conducts a document-grounded conversation. The retriever and
// LLM are injected explicitly so the session can be tested and reused
// independently of any UI loop.
type ChatService struct {
	llm       driven.LLMService
	retriever driving.Retriever
	limit     int
	messages  []driven.ChatMessage
}

// ChatOption configures a ChatService.
type ChatOption func(*ChatService)

// WithSearchLimit sets how many passages each search tool call retrieves.
// Values <= 0 keep the default.
func WithSearchLimit(limit int) ChatOption {
	return func(s *ChatService) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// NewChatService creates a chat session with an empty transcript.
func NewChatService(llm driven.LLMService, retriever driving.Retriever, opts ...ChatOption) (*ChatService, error) {
	if llm == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever is required", domain.ErrInvalidInput)
	}
	s := &ChatService{
		llm:       llm,
		retriever: retriever,
		limit:     DefaultSearchLimit,
		messages:  []driven.ChatMessage{{Role: "system", Content: systemPrompt}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send appends a user turn, resolves tool calls, and returns the
// assistant's final text reply. The transcript grows by the user turn and
// every assistant/tool turn produced while resolving it.
func (s *ChatService) Send(ctx context.Context, text string) (string, error) {
	s.messages = append(s.messages, driven.ChatMessage{Role: "user", Content: text})

	opts := driven.ChatOptions{
		Tools: []driven.ToolDefinition{{
			Name:        searchToolName,
			Description: "Searches for information using a phrase or keyword",
			Parameters:  searchToolParameters,
		}},
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.llm.Chat(ctx, s.messages, opts)
		if err != nil {
			return "", fmt.Errorf("chat: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			s.messages = append(s.messages, driven.ChatMessage{Role: "assistant", Content: resp.Content})
			return resp.Content, nil
		}

		s.messages = append(s.messages, driven.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result, err := s.runTool(ctx, call)
			if err != nil {
				return "", err
			}
			s.messages = append(s.messages, driven.ChatMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("chat: tool call limit reached after %d rounds", maxToolRounds)
}

// runTool executes one requested tool call and renders its result.
func (s *ChatService) runTool(ctx context.Context, call driven.ToolCall) (string, error) {
	if call.Name != searchToolName {
		// Unknown tools get an error result rather than failing the turn;
		// the model can recover on the next round.
		return fmt.Sprintf("unknown tool %q", call.Name), nil
	}

	var args searchArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return "", fmt.Errorf("decode %s arguments: %w", call.Name, err)
	}

	passages, err := s.retriever.Search(ctx, args.SearchPhrase, args.FilenameFilter, s.limit)
	if err != nil {
		return "", fmt.Errorf("run %s tool: %w", call.Name, err)
	}
	if len(passages) == 0 {
		return "no results", nil
	}
	return strings.Join(FormatResults(passages), "\n"), nil
}
