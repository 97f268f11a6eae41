package cli

import (
	"github.com/spf13/cobra"

	"github.com/dgallion1/narrator/internal/lang"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the languages that can be narrated",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		for _, code := range lang.Valid() {
			l, err := lang.Resolve(code)
			if err != nil {
				continue
			}
			cmd.Printf("%-6s %s\n", code, lang.Name(l))
		}
	},
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}
