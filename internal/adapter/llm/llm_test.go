package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"docchat/config"
	"docchat/internal/domain"
	"docchat/internal/port"
)

var (
	_ port.LLM = (*OpenAIClient)(nil)
	_ port.LLM = (*GeminiClient)(nil)
	_ port.LLM = (*Guard)(nil)
)

type fakeLLM struct {
	calls int
	err   error
	reply string
}

func (f *fakeLLM) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeLLM) ModelName() string { return "fake" }

func TestOpenAIClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "gpt-test" || len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Paris."}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "sk", "gpt-test", 0.2, 100)
	out, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "Paris." {
		t.Errorf("unexpected output %q", out)
	}
}

func TestOpenAIClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL, "sk", "m", 0, 0).Generate(context.Background(), "x")
	if err == nil || err.Error() != "API error: bad key" {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestGuard_PassesThrough(t *testing.T) {
	inner := &fakeLLM{reply: "ok"}
	g := NewGuard(inner, 0, nil)

	out, err := g.Generate(context.Background(), "p")
	if err != nil || out != "ok" {
		t.Fatalf("unexpected result %q %v", out, err)
	}
	if g.ModelName() != "fake" {
		t.Errorf("unexpected model name %q", g.ModelName())
	}
}

func TestGuard_OpensAfterFailures(t *testing.T) {
	boom := errors.New("upstream down")
	inner := &fakeLLM{err: boom}
	g := NewGuard(inner, 0, nil)

	for i := 0; i < 3; i++ {
		if _, err := g.Generate(context.Background(), "p"); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}

	_, err := g.Generate(context.Background(), "p")
	if !errors.Is(err, domain.ErrLLMUnavailable) {
		t.Errorf("expected ErrLLMUnavailable once open, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("open breaker should not call the model, calls=%d", inner.calls)
	}
}

func TestGuard_RateLimitHonoursContext(t *testing.T) {
	g := NewGuard(&fakeLLM{reply: "ok"}, 1, nil)

	// the single burst token is used by the first call
	if _, err := g.Generate(context.Background(), "p"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Generate(ctx, "p"); err == nil {
		t.Error("expected error waiting for the limiter with a cancelled context")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), config.LLMConfig{Provider: "gpt5-local"}, nil); err == nil {
		t.Error("expected error")
	}
}

func TestNew_Ollama(t *testing.T) {
	m, err := New(context.Background(), config.LLMConfig{Provider: "ollama", Model: "llama3"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.ModelName() != "llama3" {
		t.Errorf("unexpected model %q", m.ModelName())
	}
}
