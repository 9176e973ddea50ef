package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/msto63/cclbridge/internal/relay"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of a relay",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	addr := relayAddr
	if addr == "" {
		addr = appConfig.Relay.Address
	}

	client, err := relay.Dial(addr)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	defer client.Close()

	ctx, cancel := callContext(cmd)
	defer cancel()

	serving, err := client.Health(ctx)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s unreachable\n", errorStyle.Render("[-]"), addr)
		return fmt.Errorf("relay health: %w", err)
	}
	icon := okStyle.Render("[+]")
	if serving != healthpb.HealthCheckResponse_SERVING {
		icon = warnStyle.Render("[!]")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", icon, addr, serving.String())
	return nil
}
