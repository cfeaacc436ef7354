package embedding

import (
	"errors"
	"os"

	"github.com/openai/openai-go"
)

// ErrMissingAPIKey is returned when no OpenAI credential is configured.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY environment variable not set")

// Client wraps the OpenAI client shared by embedding and answer generation.
// One client, one connection pool, both concerns.
type Client struct {
	client *openai.Client
}

// NewClient builds the shared OpenAI client. The key is checked up front so
// a missing credential fails at startup, not on the first request.
func NewClient() (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, ErrMissingAPIKey
	}

	// The SDK picks OPENAI_API_KEY up from the environment itself.
	client := openai.NewClient()
	return &Client{client: &client}, nil
}

// Client exposes the underlying SDK client for the generator package.
func (c *Client) Client() *openai.Client {
	return c.client
}
