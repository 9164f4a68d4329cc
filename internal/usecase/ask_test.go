package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docchat/internal/adapter/embedding"
	"docchat/internal/adapter/memstore"
	"docchat/internal/domain"
)

type fakeLLM struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) ModelName() string { return "fake" }

type askFixture struct {
	ask   *AskUseCase
	llm   *fakeLLM
	store *memstore.MemoryStore
	ws    *Workspace
}

func newAskFixture(t *testing.T, opts AskOptions) *askFixture {
	t.Helper()
	emb := embedding.NewLocalEmbedder(256)
	store := memstore.NewMemoryStore()
	llm := &fakeLLM{answer: "  Paris.  "}

	ask, err := NewAskUseCase(NewRetrieveUseCase(emb, nil, 0, nil), llm, store, opts)
	if err != nil {
		t.Fatalf("NewAskUseCase failed: %v", err)
	}
	sess, err := store.CreateSession("")
	if err != nil {
		t.Fatal(err)
	}
	ws := &Workspace{SessionID: sess.ID, Index: buildIndex(t, emb, corpus...), IndexDigest: "d"}
	return &askFixture{ask: ask, llm: llm, store: store, ws: ws}
}

func TestAsk_AnswersFromDocuments(t *testing.T) {
	f := newAskFixture(t, AskOptions{})

	ans, err := f.ask.Ask(context.Background(), f.ws, "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if ans.Text != "Paris." || ans.Degraded || ans.NothingIndexed {
		t.Errorf("unexpected answer %+v", ans)
	}
	if len(ans.Sources) != defaultTopK {
		t.Errorf("expected %d sources, got %d", defaultTopK, len(ans.Sources))
	}

	prompt := f.llm.prompts[0]
	for _, want := range []string{
		"The capital of France is Paris.",
		"Question: What is the capital of France?",
		"not mentioned directly in the document",
		"doc0.txt",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	turns, _ := f.store.LoadHistory(f.ws.SessionID)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != domain.RoleUser || turns[0].Text != "What is the capital of France?" {
		t.Errorf("unexpected user turn %+v", turns[0])
	}
	if turns[1].Role != domain.RoleAssistant || turns[1].Text != "Paris." {
		t.Errorf("unexpected assistant turn %+v", turns[1])
	}
}

func TestAsk_NothingIndexed(t *testing.T) {
	f := newAskFixture(t, AskOptions{})
	f.ws.Index = nil

	ans, err := f.ask.Ask(context.Background(), f.ws, "anything?")
	if err != nil {
		t.Fatal(err)
	}
	if !ans.NothingIndexed || ans.Text != NothingIndexedText {
		t.Errorf("unexpected answer %+v", ans)
	}
	if len(f.llm.prompts) != 0 {
		t.Error("the language model should not be called")
	}
	if turns, _ := f.store.LoadHistory(f.ws.SessionID); len(turns) != 0 {
		t.Errorf("no turns should be recorded, got %d", len(turns))
	}
}

func TestAsk_LLMFailureDegrades(t *testing.T) {
	f := newAskFixture(t, AskOptions{})
	f.llm.err = domain.ErrLLMUnavailable

	ans, err := f.ask.Ask(context.Background(), f.ws, "capital of France?")
	if err != nil {
		t.Fatalf("a model failure must not be an error: %v", err)
	}
	if !ans.Degraded || !strings.HasPrefix(ans.Text, "Language model error: ") {
		t.Errorf("unexpected answer %+v", ans)
	}
	turns, _ := f.store.LoadHistory(f.ws.SessionID)
	if len(turns) != 2 || turns[1].Text != ans.Text {
		t.Errorf("the degraded answer should be recorded, got %+v", turns)
	}
}

func TestAsk_InvalidInput(t *testing.T) {
	f := newAskFixture(t, AskOptions{})
	ctx := context.Background()

	if _, err := f.ask.Ask(ctx, f.ws, "   "); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
	if _, err := f.ask.Ask(ctx, &Workspace{Index: f.ws.Index}, "paris?"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.ask.Ask(ctx, &Workspace{SessionID: "session_000000", Index: f.ws.Index}, "paris?"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAsk_HistoryIsTrimmed(t *testing.T) {
	f := newAskFixture(t, AskOptions{HistoryTurns: 2})
	for _, text := range []string{"old question", "old answer", "recent question", "recent answer"} {
		role := domain.RoleUser
		if strings.HasSuffix(text, "answer") {
			role = domain.RoleAssistant
		}
		if err := f.store.SaveTurn(f.ws.SessionID, role, text); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.ask.Ask(context.Background(), f.ws, "and now?"); err != nil {
		t.Fatal(err)
	}
	prompt := f.llm.prompts[0]
	if strings.Contains(prompt, "old question") || strings.Contains(prompt, "old answer") {
		t.Error("turns beyond the history limit should not reach the prompt")
	}
	if !strings.Contains(prompt, "user: recent question") || !strings.Contains(prompt, "assistant: recent answer") {
		t.Errorf("recent turns missing from prompt:\n%s", prompt)
	}
}

func TestAsk_RenamesGeneratedSession(t *testing.T) {
	f := newAskFixture(t, AskOptions{})

	ans, err := f.ask.Ask(context.Background(), f.ws, "paris: where is it?")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Session.Name != "Paris Chat" {
		t.Errorf("expected session renamed to %q, got %q", "Paris Chat", ans.Session.Name)
	}

	// Named sessions keep their name.
	ans, _ = f.ask.Ask(context.Background(), f.ws, "bananas?")
	if ans.Session.Name != "Paris Chat" {
		t.Errorf("a named session should not be renamed, got %q", ans.Session.Name)
	}
}

func TestAsk_RenameConflictKeepsName(t *testing.T) {
	f := newAskFixture(t, AskOptions{})
	if _, err := f.store.CreateSession("Paris Chat"); err != nil {
		t.Fatal(err)
	}
	before, _ := f.store.GetSession(f.ws.SessionID)

	ans, err := f.ask.Ask(context.Background(), f.ws, "Paris?")
	if err != nil {
		t.Fatalf("a name conflict must not fail the question: %v", err)
	}
	if ans.Session.Name != before.Name {
		t.Errorf("expected generated name %q kept, got %q", before.Name, ans.Session.Name)
	}
}

func TestSessionTitle(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"what is the capital?", "What Chat"},
		{"  PARIS, please", "Paris Chat"},
		{"¿Dónde está?", "Dónde Chat"},
		{"...", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SessionTitle(tt.question); got != tt.want {
			t.Errorf("SessionTitle(%q) = %q, want %q", tt.question, got, tt.want)
		}
	}
}
