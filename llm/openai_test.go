package llm

import (
	"context"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

type fakeOpenAI struct {
	chatReq  openai.ChatCompletionRequest
	chatResp openai.ChatCompletionResponse
	embResp  openai.EmbeddingResponse
	err      error
}

func (f *fakeOpenAI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.chatReq = req
	return f.chatResp, f.err
}

func (f *fakeOpenAI) CreateEmbeddings(_ context.Context, _ openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	return f.embResp, f.err
}

func TestNewOpenAIClientValidation(t *testing.T) {
	if _, err := NewOpenAIClient("", "gpt-4", ""); err == nil {
		t.Error("Expected error for missing API key")
	}
	if _, err := NewOpenAIClient("key", "", ""); err == nil {
		t.Error("Expected error for missing model")
	}

	c, err := NewOpenAIClient("key", "gpt-4", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.embeddingModel != string(openai.SmallEmbedding3) {
		t.Errorf("Unexpected default embedding model %q", c.embeddingModel)
	}
}

func TestOpenAIChat(t *testing.T) {
	fake := &fakeOpenAI{
		chatResp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: "A Gamay would suit that."}},
			},
		},
	}
	c := &OpenAIClient{api: fake, model: "gpt-4-turbo-preview"}

	out, err := c.Chat(context.Background(), []ChatMessage{
		{Role: "user", Content: "Light red for a picnic?"},
	}, Options{Temperature: 0.7, MaxTokens: 200})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if out != "A Gamay would suit that." {
		t.Errorf("Unexpected reply %q", out)
	}
	if fake.chatReq.Model != "gpt-4-turbo-preview" {
		t.Errorf("Unexpected model %q", fake.chatReq.Model)
	}
	if fake.chatReq.MaxTokens != 200 {
		t.Errorf("Unexpected max tokens %d", fake.chatReq.MaxTokens)
	}
}

func TestOpenAIChatEmptyChoices(t *testing.T) {
	c := &OpenAIClient{api: &fakeOpenAI{}, model: "gpt-4"}

	if _, err := c.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, Options{}); err == nil {
		t.Error("Expected error for empty response")
	}
}

func TestOpenAIEmbedBatch(t *testing.T) {
	fake := &fakeOpenAI{
		embResp: openai.EmbeddingResponse{
			Data: []openai.Embedding{
				{Embedding: []float32{0.1, 0.2}},
				{Embedding: []float32{0.3, 0.4}},
			},
		},
	}
	c := &OpenAIClient{api: fake, model: "gpt-4", embeddingModel: "text-embedding-3-small"}

	out, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(out) != 2 || len(out[0]) != 2 {
		t.Errorf("Unexpected embeddings %v", out)
	}

	// A count mismatch between inputs and vectors is an error.
	if _, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"}); err == nil {
		t.Error("Expected error for vector count mismatch")
	}
}
