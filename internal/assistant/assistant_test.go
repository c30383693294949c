package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berth-dev/slipway/internal/config"
)

// scriptedLLM returns its replies in order and records every request.
type scriptedLLM struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests [][]Message
}

func (s *scriptedLLM) Complete(_ context.Context, msgs []Message, _ float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, msgs)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errEmptyResponse
	}
	out := s.replies[0]
	s.replies = s.replies[1:]
	return out, nil
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(config.AssistantConfig{Model: "gpt-4o-mini"}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClientComplete(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  hello there \n"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.AssistantConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini", MaxTokens: 64}, nil)
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "hi"},
	}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 64, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestClientCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(config.AssistantConfig{APIKey: "sk-bad", BaseURL: srv.URL, Model: "m"}, nil)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, 0)
	assert.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`"Pixel Pals"`, "pixel-pals"},
		{"  snake_case__name ", "snake-case-name"},
		{"Todo!! App -- 2000", "todo-app-2000"},
		{"---", ""},
		{"a-very-long-repository-name-that-keeps-going", "a-very-long-repository-name-th"},
		{"abcdefghijklmnopqrstuvwxyz123-x", "abcdefghijklmnopqrstuvwxyz123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestSanitizeDescription(t *testing.T) {
	assert.Equal(t, "A fun app for todos", SanitizeDescription("'A fun\tapp\n for todos 🚀'"))
	assert.Equal(t, "Café menu", SanitizeDescription("Café menu"))

	long := SanitizeDescription(strings.Repeat("word ", 100))
	assert.Len(t, []rune(long), MaxDescriptionLength)
	assert.True(t, strings.HasSuffix(long, "..."))
}

func TestNameFromPrompt(t *testing.T) {
	assert.Equal(t, "build-a-todo-app", NameFromPrompt("Build a todo app with React and Vite"))
	assert.True(t, strings.HasPrefix(NameFromPrompt("!!! ???"), "project-"))
}

func TestNamerSuggest(t *testing.T) {
	llm := &scriptedLLM{replies: []string{`"Task Tornado"`, "A speedy todo list."}}
	name, desc := NewNamer(llm, nil).Suggest(context.Background(), "todo app")
	assert.Equal(t, "task-tornado", name)
	assert.Equal(t, "A speedy todo list.", desc)
	require.Len(t, llm.requests, 2)
	assert.Contains(t, llm.requests[0][1].Content, "todo app")
}

func TestNamerFallsBack(t *testing.T) {
	name, desc := NewNamer(nil, nil).Suggest(context.Background(), "weather dashboard")
	assert.Equal(t, "weather-dashboard", name)
	assert.Equal(t, "weather dashboard", desc)

	failing := &scriptedLLM{err: errors.New("rate limited")}
	name, _ = NewNamer(failing, nil).Suggest(context.Background(), "chess clock")
	assert.Equal(t, "chess-clock", name)
}

func TestIsReady(t *testing.T) {
	assert.True(t, IsReady("Great, REFINED PROMPT READY."))
	assert.True(t, IsReady("refined prompt ready"))
	assert.False(t, IsReady("What framework do you want?"))
}

func TestRefinerWithoutModel(t *testing.T) {
	r := NewRefiner(nil, nil)
	assert.False(t, r.Configured())

	reply, err := r.Reply(context.Background(), nil, "a blog")
	require.NoError(t, err)
	assert.False(t, reply.Ready)
	assert.Contains(t, reply.Text, "/build")

	history := []Message{
		{Role: RoleUser, Content: "a blog"},
		{Role: RoleAssistant, Content: "which stack?"},
		{Role: RoleUser, Content: "hugo"},
	}
	prompt, err := r.Finalize(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "a blog\n\nhugo", prompt)
}

func TestRefinerReplyAsksQuestions(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Which language?"}}
	r := NewRefiner(llm, nil)

	history := []Message{{Role: RoleUser, Content: "a game"}, {Role: RoleAssistant, Content: "2D or 3D?"}}
	reply, err := r.Reply(context.Background(), history, "2D")
	require.NoError(t, err)
	assert.Equal(t, "Which language?", reply.Text)
	assert.False(t, reply.Ready)

	req := llm.requests[0]
	require.Len(t, req, 4)
	assert.Equal(t, RoleSystem, req[0].Role)
	assert.Equal(t, Message{Role: RoleUser, Content: "2D"}, req[3])
}

func TestRefinerReadyReplyMakesOneCall(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Got it. REFINED PROMPT READY", "  Build a 2D platformer in Go.  "}}
	r := NewRefiner(llm, nil)

	history := []Message{{Role: RoleUser, Content: "a game"}}
	reply, err := r.Reply(context.Background(), history, "go ahead")
	require.NoError(t, err)
	assert.True(t, reply.Ready)
	require.Len(t, llm.requests, 1)

	history = append(history,
		Message{Role: RoleUser, Content: "go ahead"},
		Message{Role: RoleAssistant, Content: reply.Text})
	prompt, err := r.Finalize(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "Build a 2D platformer in Go.", prompt)

	require.Len(t, llm.requests, 2)
	extract := llm.requests[1]
	// system, history, ready reply, extraction instruction
	require.Len(t, extract, 5)
	assert.Equal(t, RoleAssistant, extract[3].Role)
	assert.Equal(t, RoleUser, extract[4].Role)
}

func TestRefinerReplyModelError(t *testing.T) {
	r := NewRefiner(&scriptedLLM{err: errors.New("boom")}, nil)
	reply, err := r.Reply(context.Background(), nil, "x")
	require.NoError(t, err)
	assert.Equal(t, emptyReply, reply.Text)
}

func TestRefinerFinalizeFallsBackOnError(t *testing.T) {
	r := NewRefiner(&scriptedLLM{err: errors.New("boom")}, nil)
	prompt, err := r.Finalize(context.Background(), []Message{{Role: RoleUser, Content: "one"}, {Role: RoleUser, Content: "two"}})
	require.NoError(t, err)
	assert.Equal(t, "one\n\ntwo", prompt)
}

func TestRefinerFinalizeCancelled(t *testing.T) {
	r := NewRefiner(&scriptedLLM{err: context.Canceled}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Finalize(ctx, []Message{{Role: RoleUser, Content: "one"}})
	assert.ErrorIs(t, err, context.Canceled)
}
