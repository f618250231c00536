package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/scout/pkg/a2a/client"
	"github.com/kadirpekel/scout/pkg/config"
)

// SendCmd sends one message to an A2A agent and prints its replies.
type SendCmd struct {
	Message   []string      `arg:"" optional:"" help:"Message text. Defaults to a sample math request."`
	URL       string        `name:"url" help:"Agent base URL." default:"http://localhost:9999" env:"SCOUT_AGENT_URL"`
	ContextID string        `name:"context-id" help:"Conversation context id to continue."`
	Stream    bool          `help:"Print events as they arrive."`
	Timeout   time.Duration `help:"Request timeout." default:"300s"`
}

func (c *SendCmd) Run() error {
	ctx := context.Background()

	text := strings.TrimSpace(strings.Join(c.Message, " "))
	if text == "" {
		text = config.DefaultPrompt
	}

	cl, err := client.New(ctx, client.Config{URL: c.URL, Timeout: c.Timeout})
	if err != nil {
		return err
	}
	defer cl.Close()

	fmt.Printf("Sending to %s: %s\n\n", cl.Card().Name, text)

	if c.Stream {
		for reply, err := range cl.Stream(ctx, text, c.ContextID) {
			if err != nil {
				return err
			}
			fmt.Println(reply)
		}
		return nil
	}

	replies, err := cl.Send(ctx, text, c.ContextID)
	if err != nil {
		return err
	}
	for _, reply := range replies {
		fmt.Println(reply)
	}
	return nil
}
