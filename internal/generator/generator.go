// Package generator produces answers with a hosted LLM, given the fixed
// system prompt, conversation history and assembled mechanics context.
package generator

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/raidwise/mechanics-server/internal/embedding"
)

// ChatModel is the model used for answer generation.
const ChatModel = openai.ChatModelGPT4o

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Generator invokes the chat completion API, either buffered or streamed.
type Generator struct {
	client *openai.Client
}

// New creates a generator sharing the embedding package's OpenAI client.
func New(client *embedding.Client) *Generator {
	return &Generator{client: client.Client()}
}

// Generate returns a complete answer for the query against the assembled
// mechanics context.
func (g *Generator) Generate(ctx context.Context, systemPrompt string, history []Message, mechContext, userQuery string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, buildParams(systemPrompt, history, mechContext, userQuery))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream streams the answer, forwarding each produced chunk to fn
// as soon as it arrives. The stream is finite and not restartable; if fn
// returns an error (e.g. the caller disconnected) generation is abandoned.
func (g *Generator) GenerateStream(ctx context.Context, systemPrompt string, history []Message, mechContext, userQuery string, fn func(chunk string) error) error {
	stream := g.client.Chat.Completions.NewStreaming(ctx, buildParams(systemPrompt, history, mechContext, userQuery))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := fn(delta); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("chat completion stream failed: %w", err)
	}
	return nil
}

// buildParams assembles the message list: system prompt, prior turns, then
// the current query with the mechanics context attached.
func buildParams(systemPrompt string, history []Message, mechContext, userQuery string) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(systemPrompt))

	for _, msg := range history {
		if msg.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(msg.Content))
		} else {
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	messages = append(messages, openai.UserMessage(fmt.Sprintf("%s\n\nQuestion: %s", mechContext, userQuery)))

	return openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    ChatModel,
	}
}
