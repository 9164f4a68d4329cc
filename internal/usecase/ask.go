package usecase

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"docchat/internal/adapter/analyzer"
	"docchat/internal/domain"
	"docchat/internal/logger"
	"docchat/internal/port"
)

//go:embed prompts/*.tmpl
var promptTemplates embed.FS

// NothingIndexedText is the answer given when no index is loaded.
const NothingIndexedText = "Nothing has been indexed yet. Upload documents and run the index first."

const (
	defaultTopK       = 3
	generatedNameMark = "session_"
)

// Answer is the outcome of one question.
type Answer struct {
	Text    string
	Sources []domain.ScoredChunk

	// NothingIndexed is set when there was no index to answer from; no
	// turns are recorded in that case.
	NothingIndexed bool

	// Degraded is set when the language model failed and Text carries the error.
	Degraded bool

	// Session is the session after the turn, including any rename.
	Session domain.Session
}

// AskOptions tunes AskUseCase.
type AskOptions struct {
	TopK         int
	HistoryTurns int // 0 keeps the whole history
	Logger       *slog.Logger
}

// AskUseCase answers questions from the indexed documents and keeps the
// conversation log of the session.
type AskUseCase struct {
	retrieve  *RetrieveUseCase
	llm       port.LLM
	store     port.ChatStore
	tokenizer *analyzer.Tokenizer
	prompt    *template.Template
	topK      int
	history   int
	log       *slog.Logger
}

type promptData struct {
	Context  []domain.ScoredChunk
	History  []domain.Turn
	Question string
}

// NewAskUseCase creates a new ask use case.
func NewAskUseCase(retrieve *RetrieveUseCase, llm port.LLM, store port.ChatStore, opts AskOptions) (*AskUseCase, error) {
	tmpl, err := template.New("answer.tmpl").Funcs(templateFuncs()).ParseFS(promptTemplates, "prompts/answer.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &AskUseCase{
		retrieve:  retrieve,
		llm:       llm,
		store:     store,
		tokenizer: analyzer.NewTokenizer(),
		prompt:    tmpl,
		topK:      topK,
		history:   opts.HistoryTurns,
		log:       logger.OrDefault(opts.Logger),
	}, nil
}

// Ask answers question within the session of ws.
func (u *AskUseCase) Ask(ctx context.Context, ws *Workspace, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuery
	}
	if ws == nil || ws.SessionID == "" {
		return nil, fmt.Errorf("%w: no session", domain.ErrInvalidInput)
	}

	sess, err := u.store.GetSession(ws.SessionID)
	if err != nil {
		return nil, err
	}
	if !ws.HasIndex() {
		return &Answer{Text: NothingIndexedText, NothingIndexed: true, Session: sess}, nil
	}

	sources, err := u.retrieve.SearchWorkspace(ctx, ws, question, u.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	history, err := u.store.LoadHistory(sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if u.history > 0 && len(history) > u.history {
		history = history[len(history)-u.history:]
	}

	prompt, err := u.render(promptData{Context: sources, History: history, Question: question})
	if err != nil {
		return nil, err
	}
	u.log.Debug("prompt rendered", "session", sess.ID, "sources", len(sources), "history", len(history),
		"tokens", u.tokenizer.CountTokens(prompt))

	answer := &Answer{Sources: sources}
	text, err := u.llm.Generate(ctx, prompt)
	if err != nil {
		u.log.Warn("language model failed", "model", u.llm.ModelName(), "error", err)
		answer.Text = "Language model error: " + err.Error()
		answer.Degraded = true
	} else {
		answer.Text = strings.TrimSpace(text)
	}

	if err := u.store.SaveTurn(sess.ID, domain.RoleUser, question); err != nil {
		return nil, fmt.Errorf("save turn: %w", err)
	}
	if err := u.store.SaveTurn(sess.ID, domain.RoleAssistant, answer.Text); err != nil {
		return nil, fmt.Errorf("save turn: %w", err)
	}

	answer.Session = u.autoRename(sess, question)
	return answer, nil
}

// autoRename names a session that still has its generated name after the
// first word of its first question.
func (u *AskUseCase) autoRename(sess domain.Session, question string) domain.Session {
	if !strings.HasPrefix(sess.Name, generatedNameMark) {
		return sess
	}
	name := SessionTitle(question)
	if name == "" {
		return sess
	}

	renamed, err := u.store.RenameSession(sess.ID, name)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			u.log.Debug("session name taken, keeping generated name", "session", sess.ID, "name", name)
		} else {
			u.log.Warn("session rename failed", "session", sess.ID, "error", err)
		}
		return sess
	}
	u.log.Info("session renamed", "session", sess.ID, "name", renamed.Name)
	return renamed
}

func (u *AskUseCase) render(data promptData) (string, error) {
	var buf bytes.Buffer
	if err := u.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

// SessionTitle derives a session name from a question: its first word,
// capitalized, followed by "Chat".
func SessionTitle(question string) string {
	fields := strings.Fields(question)
	if len(fields) == 0 {
		return ""
	}
	word := strings.TrimFunc(fields[0], func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if word == "" {
		return ""
	}
	runes := []rune(strings.ToLower(word))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes) + " Chat"
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"inc": func(i int) int { return i + 1 },
		"source": func(c domain.Chunk) string {
			name := filepath.Base(c.Source)
			if c.Page > 0 {
				return fmt.Sprintf("%s (page %d)", name, c.Page)
			}
			return name
		},
	}
}
