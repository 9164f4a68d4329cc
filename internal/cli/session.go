package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docchat/internal/usecase"
)

var sessionJSON bool

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage chat sessions",
	Long: `Create, list, rename and delete chat sessions. Sessions are referred to by
id or by name.`,
}

var sessionNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a session",
	Args:  cobra.MaximumNArgs(1),
	RunE: withSessions(func(u *usecase.SessionUseCase, args []string) error {
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		sess, err := u.New(name)
		if err != nil {
			return err
		}
		fmt.Printf("Created session %s (%s)\n", sess.Name, sess.ID)
		return nil
	}),
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, oldest first",
	Args:  cobra.NoArgs,
	RunE: withSessions(func(u *usecase.SessionUseCase, args []string) error {
		sessions, err := u.List()
		if err != nil {
			return err
		}
		if sessionJSON {
			output, _ := json.MarshalIndent(sessions, "", "  ")
			fmt.Println(string(output))
			return nil
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions.")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%-16s %-30s %s\n", s.ID, s.Name, s.CreatedAt.Local().Format(time.DateTime))
		}
		return nil
	}),
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <session> <new name>",
	Short: "Rename a session",
	Args:  cobra.MinimumNArgs(2),
	RunE: withSessions(func(u *usecase.SessionUseCase, args []string) error {
		sess, err := u.Rename(args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		fmt.Printf("Session %s is now %q\n", sess.ID, sess.Name)
		return nil
	}),
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history <session>",
	Short: "Show the conversation of a session",
	Args:  cobra.ExactArgs(1),
	RunE: withSessions(func(u *usecase.SessionUseCase, args []string) error {
		sess, turns, err := u.History(args[0])
		if err != nil {
			return err
		}
		if sessionJSON {
			output, _ := json.MarshalIndent(turns, "", "  ")
			fmt.Println(string(output))
			return nil
		}
		fmt.Printf("%s (%s), %d turns\n", sess.Name, sess.ID, len(turns))
		for _, t := range turns {
			fmt.Printf("\n[%s] %s:\n%s\n", t.At.Local().Format(time.DateTime), t.Role, t.Text)
		}
		return nil
	}),
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session>",
	Short: "Delete a session and its history",
	Args:  cobra.ExactArgs(1),
	RunE: withSessions(func(u *usecase.SessionUseCase, args []string) error {
		if err := u.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionNewCmd, sessionListCmd, sessionRenameCmd, sessionHistoryCmd, sessionDeleteCmd)
	sessionListCmd.Flags().BoolVar(&sessionJSON, "json", false, "output as JSON")
	sessionHistoryCmd.Flags().BoolVar(&sessionJSON, "json", false, "output as JSON")
}

// withSessions opens the chat store around fn.
func withSessions(fn func(u *usecase.SessionUseCase, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		st, err := openChatStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return fn(usecase.NewSessionUseCase(st), args)
	}
}
