package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch PROGRAM [ARGS]",
	Short: "Run a program and print its raw response",
	Long: `Runs PROGRAM through the facility and prints the response body as
returned. ARGS is the literal argument list that follows the fixed "MINE"
argument, e.g. '"USER"' or '"SUB", "value"'.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	program := args[0]
	var callArgs string
	if len(args) == 2 {
		callArgs = args[1]
	}

	fetcher, cleanup, err := newFetcher(appConfig)
	if err != nil {
		return fmt.Errorf("facility: %w", err)
	}
	defer cleanup()

	ctx, cancel := callContext(cmd)
	defer cancel()

	text, ok, err := fetcher.Fetch(ctx, callArgs, program)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", program, err)
	}
	if !ok {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("no request facility available"))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
