package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"audio-extractor/application/playback"
	"audio-extractor/domain/media"
	"audio-extractor/infrastructure/display"
	"audio-extractor/infrastructure/ffmpeg"
	"audio-extractor/infrastructure/filesystem"

	"github.com/spf13/cobra"
)

var (
	playSourcePath string
	playOffset     int64
	playLength     int64
	playHeadless   bool
)

// ProgressInterval is how often the play command reports its position
const ProgressInterval = time.Second

// MediaPlayer is the pipeline the play command drives
type MediaPlayer interface {
	Start(ctx context.Context, src media.ByteRange, surface media.Surface, audio media.AudioSinkFactory) error
	Pause() error
	Resume() error
	Stop() error
	Done() <-chan struct{}
	Err() error
	State() media.PipelineState
	Position() time.Duration
	Progress() float64
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play the audio and video of an MP4 in sync",
	Long: `Decode the first AVC video track and the first audio track of an MP4 and
present them together. Video frames are paced against the wall clock and
audio is held or skipped to stay within the sync threshold of the video.

While playing, type "p" and Enter to pause or resume, "q" and Enter to stop.
In the video window, q or Esc stops playback. --headless decodes and paces
video without opening a window.

Example:
  audio-extractor play --source recording.mp4
  audio-extractor play --source recording.mp4 --headless`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringVar(&playSourcePath, "source", "", "Path to the MP4 container (required)")
	playCmd.Flags().Int64Var(&playOffset, "offset", 0, "Byte offset of the container within the file")
	playCmd.Flags().Int64Var(&playLength, "length", 0, "Byte length of the container (0 = rest of file)")
	playCmd.Flags().BoolVar(&playHeadless, "headless", false, "Render video to nowhere instead of a window")
	playCmd.MarkFlagRequired("source")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	log := GetLogger()

	provider := ffmpeg.NewProvider(
		ffmpeg.WithFFmpegPath(cfg.FFmpeg.FFmpegPath),
		ffmpeg.WithLogger(log),
	)
	verifyCtx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := provider.VerifyInstalled(verifyCtx); err != nil {
		return fmt.Errorf("ffmpeg verification failed: %w", err)
	}

	src := media.ByteRange{Path: playSourcePath, Offset: playOffset, Length: playLength}
	opener, file, err := openContainer(src, cfg.Paths.SourceDirectory)
	if err != nil {
		return err
	}
	defer file.Close()

	player := playback.NewPlayer(
		provider,
		opener,
		playback.WithLogger(log),
		playback.WithSyncThreshold(cfg.Playback.SyncThreshold()),
		playback.WithSyncRetry(cfg.Playback.SyncRetry()),
		playback.WithPausePoll(cfg.Playback.PausePoll()),
	)

	var surface media.Surface
	if playHeadless || cfg.Playback.Headless {
		surface = display.NewDiscard(log)
	} else {
		window, err := display.NewWindow(cfg.Playback.WindowTitle, display.WithQuitHandler(func() {
			player.Stop()
		}))
		if err != nil {
			return err
		}
		surface = window
	}
	defer surface.Release()

	audio := ffmpeg.NewPlaySinkFactory(
		ffmpeg.WithFFplayPath(cfg.FFmpeg.FFplayPath),
		ffmpeg.WithPlayLogger(log),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	return RunPlayWithDependencies(
		ctx,
		player,
		filesystem.NewChecker(),
		cfg.Paths.SourceDirectory,
		src,
		surface,
		audio,
		os.Stdin,
		ProgressInterval,
		DefaultOutput,
	)
}

// RunPlayWithDependencies runs the play command with injected dependencies (for testing).
// Lines read from controls toggle pause ("p") or stop playback ("q"); controls may be nil.
func RunPlayWithDependencies(
	ctx context.Context,
	player MediaPlayer,
	files media.FileChecker,
	sourceDir string,
	src media.ByteRange,
	surface media.Surface,
	audio media.AudioSinkFactory,
	controls io.Reader,
	progressEvery time.Duration,
	output OutputWriter,
) error {
	src, err := media.ResolveSource(src, sourceDir, files)
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "Playing %s...\n", src.Path)
	if err := player.Start(ctx, src, surface, audio); err != nil {
		return err
	}

	quit := make(chan struct{})
	defer close(quit)
	commands := readControls(controls, quit)

	ticker := time.NewTicker(progressEvery)
	defer ticker.Stop()

	cancelled := ctx.Done()
	for {
		select {
		case <-player.Done():
			if err := player.Err(); err != nil {
				return err
			}
			fmt.Fprintf(output, "Playback finished at %s\n", media.FormatDuration(position(player)))
			return nil

		case <-cancelled:
			cancelled = nil
			fmt.Fprintln(output, "Stopping playback...")
			player.Stop()

		case <-ticker.C:
			if player.State() == media.StateRunning {
				fmt.Fprintf(output, "  %s (%.0f%%)\n", media.FormatDuration(position(player)), player.Progress())
			}

		case c := <-commands:
			handleControl(player, c, output)
		}
	}
}

func handleControl(player MediaPlayer, command string, output OutputWriter) {
	switch command {
	case "p", "pause", "r", "resume":
		if player.State() == media.StatePaused {
			if err := player.Resume(); err == nil {
				fmt.Fprintln(output, "Resumed")
			}
			return
		}
		if err := player.Pause(); err == nil {
			fmt.Fprintln(output, "Paused")
		}
	case "q", "quit", "stop":
		fmt.Fprintln(output, "Stopping playback...")
		player.Stop()
	}
}

// readControls forwards trimmed, lower-cased lines from r until r ends or quit closes
func readControls(r io.Reader, quit <-chan struct{}) <-chan string {
	commands := make(chan string)
	if r == nil {
		return commands
	}

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if line == "" {
				continue
			}
			select {
			case commands <- line:
			case <-quit:
				return
			}
		}
	}()
	return commands
}

func position(player MediaPlayer) time.Duration {
	if pos := player.Position(); pos > 0 {
		return pos
	}
	return 0
}
