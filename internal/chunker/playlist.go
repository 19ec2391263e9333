package chunker

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// playlist is the subset of an HLS playlist the pipeline needs: the ordered
// segment filenames and their announced durations.
type playlist struct {
	Segments  []string
	Durations []float64
}

func parsePlaylist(path string) (playlist, error) {
	f, err := os.Open(path)
	if err != nil {
		return playlist{}, fmt.Errorf("open playlist: %w", err)
	}
	defer f.Close()

	var pl playlist
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			v := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(v, ","); idx >= 0 {
				v = v[:idx]
			}
			d, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return playlist{}, fmt.Errorf("bad EXTINF %q in %s: %w", line, path, err)
			}
			pl.Durations = append(pl.Durations, roundTenth(d))
		case strings.HasSuffix(line, ".ts"):
			pl.Segments = append(pl.Segments, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return playlist{}, fmt.Errorf("read playlist: %w", err)
	}
	return pl, nil
}

// roundTenth rounds a segment duration to one decimal, which is all the
// player needs and keeps the media code compact.
func roundTenth(d float64) float64 {
	return math.Round(d*10) / 10
}
