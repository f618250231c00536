// Package client talks to an A2A agent, such as one served by scout
// serve, using the a2a-go client.
package client

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
)

// DefaultTimeout bounds one request, including a full agent turn.
const DefaultTimeout = 300 * time.Second

// Config configures a Client.
type Config struct {
	// URL is the agent's base URL. The card is resolved from its
	// well-known path.
	URL string

	// Timeout bounds each request. Default: DefaultTimeout.
	Timeout time.Duration

	// HTTPClient is used to resolve the agent card.
	HTTPClient *http.Client
}

// Reply is one piece of agent output.
type Reply struct {
	Role  string
	State a2a.TaskState
	Text  string
}

func (r Reply) String() string {
	return fmt.Sprintf("[%s] %s", r.Role, r.Text)
}

// Client wraps a2aclient.Client for text conversations.
type Client struct {
	client  *a2aclient.Client
	card    *a2a.AgentCard
	timeout time.Duration
}

// New resolves the agent card at cfg.URL and connects to the agent.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("agent url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	card, err := agentcard.NewResolver(httpClient).Resolve(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent card: %w", err)
	}

	client, err := a2aclient.NewFromCard(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to create a2a client: %w", err)
	}

	return &Client{client: client, card: card, timeout: timeout}, nil
}

// Card returns the resolved agent card.
func (c *Client) Card() *a2a.AgentCard {
	return c.card
}

// Send sends text and waits for the task to finish. Replies hold the
// artifacts first, then the final status message.
func (c *Client) Send(ctx context.Context, text, contextID string) ([]Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.SendMessage(ctx, &a2a.MessageSendParams{Message: newMessage(text, contextID)})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	switch r := result.(type) {
	case *a2a.Task:
		return taskReplies(r), nil
	case *a2a.Message:
		return messageReplies(r, ""), nil
	default:
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
}

// Stream sends text and yields replies as the agent publishes events.
func (c *Client) Stream(ctx context.Context, text, contextID string) iter.Seq2[Reply, error] {
	return func(yield func(Reply, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		params := &a2a.MessageSendParams{Message: newMessage(text, contextID)}
		for event, err := range c.client.SendStreamingMessage(ctx, params) {
			if err != nil {
				yield(Reply{}, fmt.Errorf("stream message: %w", err))
				return
			}
			for _, reply := range eventReplies(event) {
				if !yield(reply, nil) {
					return
				}
			}
		}
	}
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.client.Destroy()
}

func newMessage(text, contextID string) *a2a.Message {
	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: text})
	msg.ContextID = contextID
	return msg
}

func eventReplies(event a2a.Event) []Reply {
	switch e := event.(type) {
	case *a2a.Message:
		return messageReplies(e, "")
	case *a2a.Task:
		return taskReplies(e)
	case *a2a.TaskStatusUpdateEvent:
		if e.Status.Message == nil {
			return nil
		}
		return messageReplies(e.Status.Message, e.Status.State)
	case *a2a.TaskArtifactUpdateEvent:
		if e.Artifact == nil {
			return nil
		}
		return textReplies(string(a2a.MessageRoleAgent), "", e.Artifact.Parts)
	default:
		return nil
	}
}

func taskReplies(task *a2a.Task) []Reply {
	var out []Reply
	for _, artifact := range task.Artifacts {
		out = append(out, textReplies(string(a2a.MessageRoleAgent), task.Status.State, artifact.Parts)...)
	}
	if task.Status.Message != nil {
		out = append(out, messageReplies(task.Status.Message, task.Status.State)...)
	}
	return out
}

func messageReplies(msg *a2a.Message, state a2a.TaskState) []Reply {
	return textReplies(string(msg.Role), state, msg.Parts)
}

func textReplies(role string, state a2a.TaskState, parts []a2a.Part) []Reply {
	var texts []string
	for _, part := range parts {
		if tp, ok := part.(a2a.TextPart); ok && tp.Text != "" {
			texts = append(texts, tp.Text)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	return []Reply{{Role: role, State: state, Text: strings.Join(texts, "")}}
}
