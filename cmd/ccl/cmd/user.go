package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/msto63/cclbridge/pkg/ccl"
)

var userJSON bool

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Show the current user",
	RunE:  runUser,
}

func init() {
	userCmd.Flags().BoolVar(&userJSON, "json", false, "print the REPLY object as JSON")
	rootCmd.AddCommand(userCmd)
}

func runUser(cmd *cobra.Command, args []string) error {
	client, cleanup, err := newClient(appConfig)
	if err != nil {
		return fmt.Errorf("facility: %w", err)
	}
	defer cleanup()

	ctx, cancel := callContext(cmd)
	defer cancel()

	reply, err := client.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}

	if userJSON {
		data, err := json.MarshalIndent(reply, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderReply("Current user", reply))
	return nil
}

func renderReply(title string, reply ccl.Reply) string {
	if len(reply) == 0 {
		return warnStyle.Render("no user information returned")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	for _, key := range reply.Keys() {
		b.WriteString("\n")
		b.WriteString(keyStyle.Render(key))
		b.WriteString(valueStyle.Render(reply.String(key)))
	}
	return boxStyle.Render(b.String())
}
