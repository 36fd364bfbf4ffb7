package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newBoardsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "boards",
		Short: "List known board profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			boards, err := app.boards.List(cmd.Context())
			if err != nil {
				return err
			}

			for _, board := range boards {
				marker := " "
				if board.ID == app.config.defaultBoard {
					marker = "*"
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%s\t%d pins\t%s\n",
					marker, board.ID, board.Name, board.Chip, board.PinCount, strings.Join(board.Features, ","))
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}
