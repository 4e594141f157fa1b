package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"thumbsync/internal/models"

	"github.com/spf13/cobra"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the engine configuration",
	}
	cmd.AddCommand(c.newConfigShowCmd())
	cmd.AddCommand(c.newConfigApplyCmd())
	return cmd
}

func (c *CLI) newConfigShowCmd() *cobra.Command {
	var process bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored engine configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if process {
				cfg := *c.cfg
				cfg.Remote.APIKey = redact(cfg.Remote.APIKey)
				cfg.S3.AccessKey = redact(cfg.S3.AccessKey)
				cfg.S3.SecretKey = redact(cfg.S3.SecretKey)
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			cfg, err := c.openStore().LoadConfig()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().BoolVar(&process, "process", false, "Print the process configuration instead")
	return cmd
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func (c *CLI) newConfigApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file|->",
		Short: "Merge a partial JSON configuration into the stored one",
		Long: "Reads a JSON object with any of scheduler, thumbnails, notifications\n" +
			"and retention. Omitted fields keep their current values. Use - for stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			patch, err := decodePatch(data)
			if err != nil {
				return err
			}
			cfg, err := c.openStore().UpdateConfig(patch)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	}
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

// decodePatch rejects unknown fields so typos fail loudly.
func decodePatch(data []byte) (models.ConfigPatch, error) {
	var patch models.ConfigPatch
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return patch, fmt.Errorf("invalid config patch: %w", err)
	}
	return patch, nil
}
