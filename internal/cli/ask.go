package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"docchat/internal/domain"
	"docchat/internal/usecase"
)

var (
	askSession string
	askSources bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the documents",
	Long: `Answer one question from the indexed documents. The question and the answer
are recorded in the session; without --session the most recent session is
used, and one is created if there is none.

Examples:
  docchat ask "What is the capital of France?"
  docchat ask --session "Travel Chat" "And of Italy?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "session id or name")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "list the passages the answer was based on")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := openConversation(ctx, askSession)
	if err != nil {
		return err
	}
	defer c.close()

	return c.ask(ctx, strings.Join(args, " "), askSources)
}

// conversation is a session bound to the loaded index.
type conversation struct {
	ws      *usecase.Workspace
	asker   *usecase.AskUseCase
	session domain.Session
	close   func() error
}

func openConversation(ctx context.Context, sessionRef string) (*conversation, error) {
	a, err := newApp(ctx, nil)
	if err != nil {
		return nil, err
	}

	st, err := openChatStore()
	if err != nil {
		return nil, err
	}

	sess, err := usecase.NewSessionUseCase(st).Ensure(sessionRef)
	if err != nil {
		st.Close()
		return nil, err
	}

	ws := a.workspace(sess.ID)
	if _, err := a.load(ctx, ws); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	asker, err := a.newAsk(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	log.Debug("conversation ready", "session", sess.ID, "name", sess.Name, "indexed", ws.HasIndex())

	return &conversation{ws: ws, asker: asker, session: sess, close: st.Close}, nil
}

func (c *conversation) ask(ctx context.Context, question string, showSources bool) error {
	ans, err := c.asker.Ask(ctx, c.ws, question)
	if err != nil {
		return err
	}

	fmt.Println(ans.Text)
	if showSources && len(ans.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, r := range usecase.ToResults(ans.Sources, 80) {
			fmt.Printf("  [%d] %s (%.2f) %s\n", i+1, sourceLabel(r.Source, r.Page), r.Score, r.Text)
		}
	}

	if ans.Session.Name != "" && ans.Session.Name != c.session.Name {
		fmt.Printf("\n(session renamed to %q)\n", ans.Session.Name)
		c.session = ans.Session
	}
	return nil
}

func sourceLabel(source string, page int) string {
	name := filepath.Base(source)
	if page > 0 {
		return fmt.Sprintf("%s p.%d", name, page)
	}
	return name
}
