package cmd

import (
	"fmt"
	"os"

	"audio-extractor/infrastructure/config"
	"audio-extractor/infrastructure/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  = zap.NewNop()
)

// OutputWriter allows capturing output in tests
type OutputWriter interface {
	Write(p []byte) (n int, err error)
}

// DefaultOutput is the default output writer for commands
var DefaultOutput OutputWriter = os.Stdout

var rootCmd = &cobra.Command{
	Use:   "audio-extractor",
	Short: "Extract the audio of MP4 recordings and play them back in sync",
	Long: `audio-extractor works on MP4 containers:

  - Extract the audio track and re-encode it to AAC in result.m4a
  - Play audio and video together, kept within a few milliseconds of each other
  - List the tracks of a container
  - Upload result.m4a to Google Drive with link sharing

Example:
  audio-extractor extract --source recording.mp4 --output-dir out`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = config.DefaultPath
	}

	var err error
	cfg, err = config.LoadOrDefault(cfgFile)
	if err != nil {
		// A broken file is reported by the commands that need it
		fmt.Fprintf(os.Stderr, "Warning: %v; using defaults\n", err)
		cfg = config.Default()
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	l, err := logging.New(level, cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; logging disabled\n", err)
		return
	}
	logger = l
	zap.ReplaceGlobals(logger)
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// GetLogger returns the logger installed by the root command
func GetLogger() *zap.Logger {
	return logger
}
