package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nathoo/rulecore/loader"
)

var checkCmd = &cobra.Command{
	Use:   "check <game_directory>",
	Short: "Validate a game directory",
	Long: `Loads and validates the game in the given directory without playing it.
Validation errors fail the command. Warnings are printed and do not.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := initLogger(false); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	content, err := loader.Load(args[0])
	if err != nil {
		return err
	}
	for _, w := range content.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	fmt.Fprintf(out, "%s: %d entities, %d callbacks, %d custom verbs\n",
		content.Config.Title, len(content.World.Entities()), len(content.Callbacks), len(content.Vocabulary))
	for i, cb := range content.Callbacks {
		fmt.Fprintf(out, "  %d. %s\n", i+1, cb.Name)
	}
	return nil
}
