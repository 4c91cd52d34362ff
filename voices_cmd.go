package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var (
	voicesJSON bool

	voicesCmd = &cobra.Command{
		Use:   "voices",
		Short: "List the available voices",
		Long:  paragraph(fmt.Sprintf("\n%s every voice that can be passed to --voice. GenAIPro voices are fetched when GENAIPRO_API_KEY is set.", keyword("List"))),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			a.refreshVoices(cmd.Context())
			voices := a.catalog.List()

			if voicesJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(voices)
			}

			width := 0
			for _, v := range voices {
				width = max(width, runewidth.StringWidth(v.Label))
			}
			for _, v := range voices {
				pad := strings.Repeat(" ", width-runewidth.StringWidth(v.Label))
				fmt.Printf("%s%s  %s\n", keyword(v.Label), pad, faint(v.Spec()))
			}
			return nil
		},
	}
)

func init() {
	voicesCmd.Flags().BoolVar(&voicesJSON, "json", false, "print as JSON")
}
