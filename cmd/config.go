package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"audio-extractor/infrastructure/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change configuration values",
	Long: `Show, read, and update the values in the configuration file.

Keys are dotted section.field names, as listed by "config keys".

Examples:
  audio-extractor config show
  audio-extractor config get audio.bitrate
  audio-extractor config set audio.bitrate 96000
  audio-extractor config set google.folder_id 1AbCdEf`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunConfigShowWithDependencies(GetConfig(), DefaultOutput)
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the settable keys and their values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunConfigKeysWithDependencies(GetConfig(), DefaultOutput)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunConfigGetWithDependencies(GetConfig(), args[0], DefaultOutput)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one configuration value and save the file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunConfigSetWithDependencies(GetConfig(), cfgFile, args[0], args[1], DefaultOutput)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

// RunConfigShowWithDependencies prints cfg as YAML
func RunConfigShowWithDependencies(cfg *config.Config, out OutputWriter) error {
	text, err := config.NewConfigManager(cfg, "").Show()
	if err != nil {
		return err
	}
	fmt.Fprint(out, text)
	return nil
}

// RunConfigKeysWithDependencies prints every key with its current value
func RunConfigKeysWithDependencies(cfg *config.Config, out OutputWriter) error {
	mgr := config.NewConfigManager(cfg, "")

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	for _, key := range mgr.Keys() {
		value, err := mgr.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\n", key, value)
	}
	return w.Flush()
}

// RunConfigGetWithDependencies prints the value of key
func RunConfigGetWithDependencies(cfg *config.Config, key string, out OutputWriter) error {
	value, err := config.NewConfigManager(cfg, "").Get(key)
	if err != nil {
		if errors.Is(err, config.ErrUnknownKey) {
			return fmt.Errorf("%w; run 'audio-extractor config keys' to list keys", err)
		}
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}

// RunConfigSetWithDependencies validates and stores value under key, then saves configPath
func RunConfigSetWithDependencies(cfg *config.Config, configPath, key, value string, out OutputWriter) error {
	mgr := config.NewConfigManager(cfg, configPath)
	if err := mgr.Set(key, value); err != nil {
		if errors.Is(err, config.ErrUnknownKey) {
			return fmt.Errorf("%w; run 'audio-extractor config keys' to list keys", err)
		}
		return err
	}

	saved, _ := mgr.Get(key)
	fmt.Fprintf(out, "Set %s = %s in %s\n", key, saved, configPath)
	return nil
}
