package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docchat/config"
	"docchat/internal/adapter/fs"
)

var uploadRemove bool

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Stage documents for indexing",
	Long: `Copy documents into the upload area. A file with the same name replaces the
staged one. With --remove, the named files are removed from the upload area.

Examples:
  docchat upload report.pdf data.xlsx
  docchat upload --remove report.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolVar(&uploadRemove, "remove", false, "remove the named files from the upload area")
}

func runUpload(cmd *cobra.Command, args []string) error {
	stager := fs.NewStager(config.Resolve(GetRootDir(), GetConfig().Uploads.Dir))

	for _, arg := range args {
		if uploadRemove {
			if err := stager.Remove(arg); err != nil {
				return fmt.Errorf("failed to remove %s: %w", arg, err)
			}
			fmt.Printf("Removed %s\n", arg)
			continue
		}

		dest, err := stager.StageFile(arg)
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", arg, err)
		}
		log.Debug("file staged", "src", arg, "dest", dest)
		fmt.Printf("Uploaded %s\n", dest)
	}

	fmt.Println("\nRun 'docchat index' to update the index.")
	return nil
}
