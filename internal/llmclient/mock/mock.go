// Package mock provides a test double for the llmclient.Client interface,
// adapted from pkg/provider/llm/mock.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/arlobrandt/loomgraph/internal/llmclient"
)

// Call records a single invocation of CallStructured.
type Call struct {
	Ctx    context.Context
	Prompt string
	Schema json.RawMessage
	Model  string
}

// Client is a mock implementation of llmclient.Client. Responses is
// consumed in order, one per call; Err, if set, is returned instead and
// does not consume a Responses entry. Calling past the end of Responses
// with no Err set panics, surfacing a test author's missing fixture
// immediately rather than silently returning a zero value.
type Client struct {
	mu sync.Mutex

	Responses []json.RawMessage
	Err       error

	next  int
	Calls []Call
}

var _ llmclient.Client = (*Client)(nil)

// CallStructured implements llmclient.Client.
func (c *Client) CallStructured(ctx context.Context, prompt string, schema json.RawMessage, model string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, Call{Ctx: ctx, Prompt: prompt, Schema: schema, Model: model})

	if c.Err != nil {
		return nil, c.Err
	}
	if c.next >= len(c.Responses) {
		panic(fmt.Sprintf("mock.Client: CallStructured invoked %d times but only %d fixture responses were configured", c.next+1, len(c.Responses)))
	}
	resp := c.Responses[c.next]
	c.next++
	return resp, nil
}

// Reset clears call history and rewinds the response queue.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
	c.next = 0
}
