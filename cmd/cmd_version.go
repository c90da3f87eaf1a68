package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/universal-brc20/indexer/modules/brc20"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show indexer version",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Println(brc20.ClientVersion)
			return nil
		},
	}
}
