package client

import (
	"context"
	"iter"
	"net/http/httptest"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/scout/pkg/config"
	"github.com/kadirpekel/scout/pkg/conversation"
	"github.com/kadirpekel/scout/pkg/server"
)

type echoTurner struct {
	contexts []string
}

func (e *echoTurner) Turn(_ context.Context, threadID, text string) iter.Seq2[conversation.Fragment, error] {
	e.contexts = append(e.contexts, threadID)
	return func(yield func(conversation.Fragment, error) bool) {
		yield(conversation.TextFragment("echo: "+text), nil)
	}
}

func startAgent(t *testing.T, turner server.Turner) string {
	t.Helper()
	ts := httptest.NewUnstartedServer(nil)
	url := "http://" + ts.Listener.Addr().String()

	srv := server.NewHTTPServer(&config.ServerConfig{URL: url + "/"}, turner)
	ts.Config.Handler = srv.Handler()
	ts.Start()
	t.Cleanup(ts.Close)
	return url
}

func TestClient_ResolvesCard(t *testing.T) {
	url := startAgent(t, &echoTurner{})

	c, err := New(context.Background(), Config{URL: url})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, config.DefaultServerName, c.Card().Name)
	assert.Equal(t, url+"/", c.Card().URL)
}

func TestClient_Send(t *testing.T) {
	turner := &echoTurner{}
	url := startAgent(t, turner)

	c, err := New(context.Background(), Config{URL: url})
	require.NoError(t, err)
	defer c.Close()

	replies, err := c.Send(context.Background(), "hello", "ctx-7")
	require.NoError(t, err)
	require.Len(t, replies, 2)

	assert.Equal(t, "[agent] echo: hello", replies[0].String())
	assert.Equal(t, server.DoneMessage, replies[1].Text)
	assert.Equal(t, a2a.TaskStateCompleted, replies[1].State)
	assert.Equal(t, []string{"ctx-7"}, turner.contexts)
}

func TestClient_Stream(t *testing.T) {
	url := startAgent(t, &echoTurner{})

	c, err := New(context.Background(), Config{URL: url})
	require.NoError(t, err)
	defer c.Close()

	var texts []string
	for reply, err := range c.Stream(context.Background(), "hi", "") {
		require.NoError(t, err)
		texts = append(texts, reply.Text)
	}
	assert.Contains(t, texts, "echo: hi")
	assert.Contains(t, texts, server.DoneMessage)
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestEventReplies(t *testing.T) {
	msg := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "a"}, a2a.TextPart{Text: "b"})
	replies := eventReplies(msg)
	require.Len(t, replies, 1)
	assert.Equal(t, "[agent] ab", replies[0].String())

	assert.Empty(t, eventReplies(&a2a.TaskStatusUpdateEvent{}))
	assert.Empty(t, eventReplies(&a2a.TaskArtifactUpdateEvent{}))
}
