package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/cclbridge/internal/relay"
	"github.com/msto63/cclbridge/pkg/ccl"
	"github.com/msto63/cclbridge/pkg/ccl/webservice"
	"github.com/msto63/cclbridge/pkg/core/config"
	"github.com/msto63/cclbridge/pkg/core/logging"
)

var (
	cfgFile   string
	relayAddr string
	timeout   time.Duration
	verbose   bool

	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ccl",
	Short: "Client for the CCL request facility",
	Long: `ccl runs CCL programs through a request facility and unwraps the
replies of the SMART on FHIR utilities helper program.

The facility is either the web service configured under [webservice]
or a relay started with "ccl serve", selected with --relay.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $CCL_CONFIG or ./configs/config.toml)")
	rootCmd.PersistentFlags().StringVar(&relayAddr, "relay", "", "relay address; use a relay instead of the web service")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "abandon the call after this long (0 waits indefinitely)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfgFile != "" {
		appConfig, err = config.Load(cfgFile)
	} else {
		appConfig, err = config.LoadFromEnv()
	}
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	level := appConfig.General.LogLevel
	if verbose {
		level = "debug"
	}
	logging.Configure(logging.LoggerConfig{
		ServiceName: appConfig.General.Name,
		Level:       level,
		Format:      appConfig.Log.Format,
		Outputs:     appConfig.Log.Outputs,
		Rotation: logging.RotationConfig{
			Enabled:    appConfig.Log.Rotation.Enabled,
			MaxSizeMB:  appConfig.Log.Rotation.MaxSizeMB,
			MaxBackups: appConfig.Log.Rotation.MaxBackups,
			MaxAgeDays: appConfig.Log.Rotation.MaxAgeDays,
			Compress:   appConfig.Log.Rotation.Compress,
		},
	})
	return nil
}

// callContext applies --timeout to the command context
func callContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

// newFacility builds the web service facility, or nil when none is configured
func newFacility(cfg *config.Config) (ccl.Facility, error) {
	if cfg.WebService.BaseURL == "" {
		return nil, nil
	}
	facility, err := webservice.New(webservice.Config{
		BaseURL: cfg.WebService.BaseURL,
		Token:   cfg.WebService.Token,
		Timeout: cfg.WebService.Timeout.Duration,
		Name:    cfg.WebService.FacilityName,
	})
	if err != nil {
		return nil, err
	}
	return facility, nil
}

// newFetcher returns the relay client when --relay is set, otherwise an
// adapter over the configured facility
func newFetcher(cfg *config.Config) (ccl.Fetcher, func(), error) {
	if relayAddr != "" {
		client, err := relay.Dial(relayAddr)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	}

	facility, err := newFacility(cfg)
	if err != nil {
		return nil, nil, err
	}
	return ccl.NewAdapter(facility), func() {}, nil
}

// newClient returns a helper program client over the selected fetcher
func newClient(cfg *config.Config) (*ccl.Client, func(), error) {
	fetcher, cleanup, err := newFetcher(cfg)
	if err != nil {
		return nil, nil, err
	}
	return ccl.NewClient(fetcher, ccl.WithProgram(cfg.Helper.Program)), cleanup, nil
}
