package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"audio-extractor/application/extract"
	"audio-extractor/domain/media"
	"audio-extractor/infrastructure/ffmpeg"
	"audio-extractor/infrastructure/filesystem"
	"audio-extractor/infrastructure/mp4"

	"github.com/spf13/cobra"
)

var (
	extractSourcePath string
	extractOffset     int64
	extractLength     int64
	extractOutputDir  string
	extractStream     bool
)

// AudioExtractor is the pipeline the extract command drives
type AudioExtractor interface {
	Extract(ctx context.Context, src media.ByteRange, outputDir string) (*extract.Result, error)
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the audio track of an MP4 into result.m4a",
	Long: `Decode the first audio track of an MP4 container and re-encode it to
AAC-LC in result.m4a inside the output directory.

If --source is a relative path that does not exist, it is looked up in the
configured source_directory. --offset and --length select a byte range of the
file; a length of 0 means "to the end of the file".

Example:
  audio-extractor extract --source recording.mp4
  audio-extractor extract --source /media/all.bin --offset 4096 --length 1048576 --output-dir out --stream`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractSourcePath, "source", "", "Path to the MP4 container (required)")
	extractCmd.Flags().Int64Var(&extractOffset, "offset", 0, "Byte offset of the container within the file")
	extractCmd.Flags().Int64Var(&extractLength, "length", 0, "Byte length of the container (0 = rest of file)")
	extractCmd.Flags().StringVar(&extractOutputDir, "output-dir", "", "Directory for result.m4a (default from config)")
	extractCmd.Flags().BoolVar(&extractStream, "stream", false, "Encode while decoding over a bounded queue")
	extractCmd.MarkFlagRequired("source")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := GetLogger()

	outputDir := extractOutputDir
	if outputDir == "" {
		outputDir = cfg.Paths.OutputDirectory
	}

	provider := ffmpeg.NewProvider(
		ffmpeg.WithFFmpegPath(cfg.FFmpeg.FFmpegPath),
		ffmpeg.WithLogger(log),
	)
	verifyCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := provider.VerifyInstalled(verifyCtx); err != nil {
		return fmt.Errorf("ffmpeg verification failed: %w", err)
	}

	src := media.ByteRange{Path: extractSourcePath, Offset: extractOffset, Length: extractLength}
	opener, file, err := openContainer(src, cfg.Paths.SourceDirectory)
	if err != nil {
		return err
	}
	defer file.Close()

	extractor := extract.NewExtractor(
		provider,
		opener,
		mp4.NewMuxerFactory(mp4.WithMuxerLogger(log)),
		extract.WithLogger(log),
		extract.WithBitRate(cfg.Audio.BitRate),
		extract.WithMaxInputSize(cfg.Audio.MaxInputSize),
		extract.WithStreaming(extractStream || cfg.Audio.Streaming),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	return RunExtractWithDependencies(
		ctx,
		extractor,
		filesystem.NewChecker(),
		cfg.Paths.SourceDirectory,
		outputDir,
		src,
		DefaultOutput,
	)
}

// RunExtractWithDependencies runs the extract command with injected dependencies (for testing)
func RunExtractWithDependencies(
	ctx context.Context,
	extractor AudioExtractor,
	files media.FileChecker,
	sourceDir string,
	outputDir string,
	src media.ByteRange,
	output OutputWriter,
) error {
	src, err := media.ResolveSource(src, sourceDir, files)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	fmt.Fprintf(output, "Extracting audio from %s...\n", src.Path)

	result, err := extractor.Extract(ctx, src, outputDir)
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "Audio track: %s\n", result.Track)
	fmt.Fprintf(output, "Encoded %d AAC frames from %d PCM chunks in %s\n",
		result.EncodedSamples, result.DecodedChunks, result.Duration.Round(time.Millisecond))
	fmt.Fprintf(output, "Successfully created: %s\n", result.OutputPath)
	return nil
}
