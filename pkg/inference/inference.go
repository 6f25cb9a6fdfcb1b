// Package inference talks to a local OpenAI-compatible language model server.
//
// The default target is Ollama's /v1 endpoint, but any server implementing
// /chat/completions works (llama.cpp server, vLLM, LM Studio, OpenAI).
//
//	client, _ := inference.NewClient(
//	    inference.WithBaseURL("http://localhost:11434/v1"),
//	    inference.WithModel("llama3.2:3b"),
//	)
//	defer client.Close()
//
//	resp, _ := client.Chat(ctx, &inference.ChatRequest{
//	    Messages: []inference.Message{inference.NewUserMessage("Hello!")},
//	})
package inference

import "context"

// Provider is the text and vision completion interface.
type Provider interface {
	// Chat generates a reply to a sequence of messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Vision answers a prompt about a JPEG image.
	Vision(ctx context.Context, req *VisionRequest) (*VisionResponse, error)

	// Health checks server connectivity.
	Health(ctx context.Context) error

	// Close releases idle connections.
	Close() error
}

// Role identifies a message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatRequest is a chat completion request. Zero values fall back to the
// client configuration.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
}

// ChatResponse is a chat completion.
type ChatResponse struct {
	Message      Message
	FinishReason string
	Usage        Usage
	Model        string
	LatencyMs    int64
}

// VisionRequest asks about one JPEG-encoded image.
type VisionRequest struct {
	JPEG        []byte
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// VisionResponse is the model's answer about an image.
type VisionResponse struct {
	Content   string
	Usage     Usage
	Model     string
	LatencyMs int64
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
