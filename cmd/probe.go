package cmd

import (
	"fmt"
	"text/tabwriter"

	"audio-extractor/domain/media"
	"audio-extractor/infrastructure/filesystem"

	"github.com/spf13/cobra"
)

var (
	probeSourcePath string
	probeOffset     int64
	probeLength     int64
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "List the tracks of an MP4 and the ones extract and play would use",
	Long: `Open an MP4 container and print its elementary streams, marking the
audio track extract and play select (the first audio/* track) and the video
track play selects (the first video/avc track).

Example:
  audio-extractor probe --source recording.mp4`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().StringVar(&probeSourcePath, "source", "", "Path to the MP4 container (required)")
	probeCmd.Flags().Int64Var(&probeOffset, "offset", 0, "Byte offset of the container within the file")
	probeCmd.Flags().Int64Var(&probeLength, "length", 0, "Byte length of the container (0 = rest of file)")
	probeCmd.MarkFlagRequired("source")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	src := media.ByteRange{Path: probeSourcePath, Offset: probeOffset, Length: probeLength}
	opener, file, err := openContainer(src, cfg.Paths.SourceDirectory)
	if err != nil {
		return err
	}
	defer file.Close()

	return RunProbeWithDependencies(
		opener,
		filesystem.NewChecker(),
		cfg.Paths.SourceDirectory,
		src,
		DefaultOutput,
	)
}

// RunProbeWithDependencies runs the probe command with injected dependencies (for testing)
func RunProbeWithDependencies(
	opener media.SourceOpener,
	files media.FileChecker,
	sourceDir string,
	src media.ByteRange,
	output OutputWriter,
) error {
	src, err := media.ResolveSource(src, sourceDir, files)
	if err != nil {
		return err
	}

	source, err := opener.Open(src)
	if err != nil {
		return err
	}
	defer source.Release()

	tracks := source.Tracks()
	audio, hasAudio := media.FindTrack(tracks, media.IsAudio)
	video, hasVideo := media.FindTrack(tracks, media.IsAVC)

	fmt.Fprintf(output, "%s: %d track(s)\n\n", src.Path, len(tracks))

	w := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tTYPE\tDETAILS\tDURATION\tUSED BY")
	for i, t := range tracks {
		usedBy := "-"
		switch {
		case hasAudio && i == audio:
			usedBy = "extract, play (audio)"
		case hasVideo && i == video:
			usedBy = "play (video)"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.Index, t.MimeType, trackDetails(t), media.FormatDuration(t.Duration), usedBy)
	}
	w.Flush()

	fmt.Fprintln(output)
	if !hasAudio {
		fmt.Fprintln(output, "No audio track: extract and play will fail")
	}
	if !hasVideo {
		fmt.Fprintln(output, "No AVC video track: play will fail")
	}
	return nil
}

func trackDetails(t media.Track) string {
	switch {
	case t.IsAudioTrack():
		return fmt.Sprintf("%d Hz, %d ch", t.SampleRate, t.ChannelCount)
	case t.Width > 0:
		return fmt.Sprintf("%dx%d", t.Width, t.Height)
	default:
		return "-"
	}
}
