// Package commands implements the thumbsync CLI.
package commands

import (
	"context"
	"fmt"
	"io"

	"thumbsync/internal/app"
	"thumbsync/internal/logging"
	"thumbsync/internal/startup"
	"thumbsync/internal/state"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CLI represents the command line interface for thumbsync.
type CLI struct {
	v          *viper.Viper
	cfg        *startup.Config
	configFile string
	rootCmd    *cobra.Command
}

// New creates the command tree. Flags, THUMBSYNC_* variables and the
// config file share one set of viper keys.
func New() *CLI {
	c := &CLI{v: startup.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "thumbsync",
		Short:         "Keep a thumbnail cache in sync with a remote image tree",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       startup.Version,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return c.loadConfig()
		},
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "Config file (default: ./thumbsync.yaml or /etc/thumbsync/thumbsync.yaml)")
	flags.String("data-dir", "", "Directory holding state and history files")
	flags.String("cache-dir", "", "Local thumbnail cache root")
	flags.String("remote-url", "", "Base URL of the remote file service")
	flags.String("scan-root", "", "Remote folder to scan")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: console or json")
	flags.String("log-file", "", "Also write JSON logs to this rotated file")
	c.bind(rootCmd, map[string]string{
		"data_dir":   "data-dir",
		"cache_dir":  "cache-dir",
		"remote.url": "remote-url",
		"scan.root":  "scan-root",
		"log.level":  "log-level",
		"log.format": "log-format",
		"log.file":   "log-file",
	}, true)

	c.rootCmd = rootCmd

	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newScanCmd())
	rootCmd.AddCommand(c.newRegenerateCmd())
	rootCmd.AddCommand(c.newClearCmd())
	rootCmd.AddCommand(c.newCleanupCmd())
	rootCmd.AddCommand(c.newStatusCmd())
	rootCmd.AddCommand(c.newConfigCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// bind maps viper keys to flags on cmd.
func (c *CLI) bind(cmd *cobra.Command, keys map[string]string, persistent bool) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := c.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func (c *CLI) loadConfig() error {
	if err := startup.ReadConfigFile(c.v, c.configFile); err != nil {
		return err
	}
	cfg, err := startup.LoadConfig(c.v)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.Log.Logging()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	c.cfg = cfg
	return nil
}

// openApp prepares directories and wires every component.
func (c *CLI) openApp(ctx context.Context) (*app.App, error) {
	if err := startup.PrepareDirectories(c.cfg); err != nil {
		return nil, err
	}
	return app.New(ctx, c.cfg)
}

// openStore is enough for commands that only touch state files.
func (c *CLI) openStore() *state.Store {
	return state.New(c.cfg.DataDir)
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetIO redirects command input and output. Used for testing.
func (c *CLI) SetIO(in io.Reader, out io.Writer) {
	c.rootCmd.SetIn(in)
	c.rootCmd.SetOut(out)
}
