package segmenter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Rung is one resolution tier of the adaptive bitrate ladder. Immutable once
// chosen for a transcode run.
type Rung struct {
	Label       string
	ScaleFilter string
}

// RungResult reports where one rung's outputs landed.
type RungResult struct {
	Rung         Rung
	PlaylistPath string
	OutputDir    string
}

const (
	tierSmall  = 100 * 1024 * 1024
	tierMedium = 300 * 1024 * 1024
)

type Config struct {
	OutputRoot       string
	ProbeTimeout     time.Duration
	TranscodeTimeout time.Duration
	DefaultFrameRate int
}

// Segmenter turns a stable source video into per-rung HLS segment
// directories plus playlists, by driving external ffprobe/ffmpeg processes.
type Segmenter struct {
	cfg Config
	log hclog.Logger
	sem chan struct{}
}

func New(cfg Config, maxConcurrent int, log hclog.Logger) *Segmenter {
	if cfg.DefaultFrameRate <= 0 {
		cfg.DefaultFrameRate = 25
	}
	return &Segmenter{cfg: cfg, log: log.Named("segmenter"), sem: make(chan struct{}, maxConcurrent)}
}

func (s *Segmenter) withPermit(fn func() error) error {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	return fn()
}

// Ladder selects rungs from the source pixel height. Sources below 1080 lines
// get only the 720p rung so nothing is upscaled.
func Ladder(height int) []Rung {
	if height >= 1080 {
		return []Rung{
			{Label: "1080p", ScaleFilter: "scale=-2:1080"},
			{Label: "720p", ScaleFilter: "scale=-2:720"},
		}
	}
	return []Rung{{Label: "720p", ScaleFilter: "scale=-2:720"}}
}

// SegmentSecondsFor picks a target segment length from the source size,
// amortizing per-segment transcode overhead against seek granularity.
func SegmentSecondsFor(sizeBytes int64) int {
	switch {
	case sizeBytes < tierSmall:
		return 8
	case sizeBytes < tierMedium:
		return 12
	default:
		return 18
	}
}

// Probe reads the source's pixel dimensions with ffprobe.
func (s *Segmenter) Probe(ctx context.Context, sourcePath string) (width, height int, err error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0",
		sourcePath)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, 0, fmt.Errorf("ffprobe %s: %w", sourcePath, err)
	}
	return parseProbeDims(out.String())
}

func parseProbeDims(out string) (int, int, error) {
	fields := strings.Split(strings.TrimSpace(out), ",")
	switch len(fields) {
	case 0:
		return 0, 0, fmt.Errorf("ffprobe returned no dimensions")
	case 1:
		h, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return 0, 0, fmt.Errorf("ffprobe output %q: %w", out, err)
		}
		return 0, h, nil
	default:
		w, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return 0, 0, fmt.Errorf("ffprobe output %q: %w", out, err)
		}
		h, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("ffprobe output %q: %w", out, err)
		}
		return w, h, nil
	}
}

// Segment transcodes sourcePath into every rung the ladder selects. A zero
// segmentSeconds defers to the size heuristic; a zero frameRate defers to the
// configured default. Rungs run sequentially; a failed rung aborts the run
// but partial outputs are left in place for inspection, and re-runs are
// idempotent because the filenames are deterministic.
func (s *Segmenter) Segment(ctx context.Context, sourcePath string, segmentSeconds, frameRate int) ([]RungResult, error) {
	var results []RungResult
	err := s.withPermit(func() error {
		_, height, err := s.Probe(ctx, sourcePath)
		if err != nil {
			// Unknown dimensions: assume 720p source rather than failing the
			// whole upload, matching the single-rung ladder.
			s.log.Warn("probe failed, assuming 720p source", "path", sourcePath, "error", err)
			height = 720
		}

		info, err := os.Stat(sourcePath)
		if err != nil {
			return fmt.Errorf("stat %s: %w", sourcePath, err)
		}
		if segmentSeconds <= 0 {
			segmentSeconds = SegmentSecondsFor(info.Size())
		}
		if frameRate <= 0 {
			frameRate = s.cfg.DefaultFrameRate
		}

		base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
		for _, rung := range Ladder(height) {
			outDir := filepath.Join(s.cfg.OutputRoot, rung.Label)
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", outDir, err)
			}
			res, err := s.encodeRung(ctx, sourcePath, base, rung, outDir, segmentSeconds, frameRate)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	return results, err
}

func (s *Segmenter) encodeRung(ctx context.Context, sourcePath, base string, rung Rung, outDir string, segmentSeconds, frameRate int) (RungResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TranscodeTimeout)
	defer cancel()

	segmentPattern := filepath.Join(outDir, base+"_segment_%03d.ts")
	playlistPath := filepath.Join(outDir, base+".m3u8")
	gop := segmentSeconds * frameRate

	args := []string{
		"-y",
		"-i", sourcePath,
		"-r", strconv.Itoa(frameRate),
		"-vf", rung.ScaleFilter,
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "24",
		// Every segment must start on a keyframe for segment-level
		// decryption and seeking.
		"-g", strconv.Itoa(gop),
		"-keyint_min", strconv.Itoa(gop),
		"-sc_threshold", "0",
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", segmentSeconds),
		"-c:a", "aac", "-b:a", "96k", "-ar", "44100", "-ac", "2",
		"-flush_packets", "1",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_segment_type", "mpegts",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", segmentPattern,
		playlistPath,
	}

	s.log.Info("encoding rung", "rung", rung.Label, "source", sourcePath, "segment_seconds", segmentSeconds, "fps", frameRate)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return RungResult{}, fmt.Errorf("ffmpeg rung %s for %s: %w: %s", rung.Label, sourcePath, err, lastLine(stderr.String()))
	}
	return RungResult{Rung: rung, PlaylistPath: playlistPath, OutputDir: outDir}, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
