package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the index is fresh",
	Long: `Report whether the persisted index matches the uploaded documents and the
current build settings, without loading or rebuilding anything.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

type statusOutput struct {
	Fresh       bool      `json:"fresh"`
	Reason      string    `json:"reason,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Uploads     []string  `json:"uploads"`
	Chunks      int       `json:"chunks,omitempty"`
	BuiltAt     time.Time `json:"built_at,omitempty"`
	CacheDir    string    `json:"cache_dir"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), nil)
	if err != nil {
		return err
	}
	files, err := a.sourceFiles()
	if err != nil {
		return err
	}

	ws := a.workspace("")
	st, err := a.cache.Status(ws, files)
	if err != nil {
		return err
	}

	out := statusOutput{
		Fresh:       st.Fresh,
		Reason:      st.Reason,
		Fingerprint: a.cache.Fingerprint(),
		CacheDir:    ws.CacheDir,
	}
	for path := range st.Current {
		out.Uploads = append(out.Uploads, path)
	}
	sort.Strings(out.Uploads)
	if st.Snapshot != nil {
		out.Chunks = st.Snapshot.Chunks
		out.BuiltAt = st.Snapshot.CreatedAt
	}

	if statusJSON {
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Uploads (%d) in %s:\n", len(out.Uploads), a.uploadsDir())
	for _, p := range out.Uploads {
		fmt.Printf("  - %s\n", filepath.Base(p))
	}
	fmt.Println()
	if out.Fresh {
		fmt.Printf("Index: fresh (%d chunks, built %s)\n", out.Chunks, out.BuiltAt.Local().Format(time.DateTime))
	} else {
		fmt.Printf("Index: stale (%s)\n", out.Reason)
	}
	fmt.Printf("Fingerprint: %s\n", out.Fingerprint)
	return nil
}
