package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call SUBROUTINE [ARGUMENT]",
	Short: "Call a helper program subroutine and print its value",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	client, cleanup, err := newClient(appConfig)
	if err != nil {
		return fmt.Errorf("facility: %w", err)
	}
	defer cleanup()

	ctx, cancel := callContext(cmd)
	defer cancel()

	var value string
	if len(args) == 2 {
		value, err = client.CallWithArgument(ctx, args[0], args[1])
	} else {
		value, err = client.Call(ctx, args[0])
	}
	if err != nil {
		return fmt.Errorf("call %s: %w", args[0], err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}
