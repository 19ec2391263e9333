// Package chunker renames and encrypts transcoded HLS segments so that the
// original filenames and content are unrecoverable without the derived key,
// and emits the per-asset media descriptor.
package chunker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"vodvault/internal/mediacode"
)

type Config struct {
	Secret     []byte
	OutputRoot string
}

// Processor encrypts one playlist's segments into chunks. Every derived
// artifact is a pure function of (secret, playlist name, index), so
// reprocessing overwrites the same outputs and is safe to retry.
type Processor struct {
	cfg Config
	log hclog.Logger
	sem chan struct{}
	now func() time.Time
}

// Result is what one playlist run produces.
type Result struct {
	Rung           string
	HighDefinition bool
	OutputDir      string
	ChunkPaths     []string
	Descriptor     mediacode.Descriptor
	MediaCode      string
	IDs            SourceIDs
	IDsParsed      bool
}

func New(cfg Config, maxConcurrent int, log hclog.Logger) *Processor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Processor{
		cfg: cfg,
		log: log.Named("chunker"),
		sem: make(chan struct{}, maxConcurrent),
		now: time.Now,
	}
}

// rungOf classifies a playlist path by the resolution directory it sits in.
// 720p wins when both markers appear, matching the watcher layout.
func rungOf(path string) (label string, highDef bool) {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "720p" {
			return "720p", false
		}
	}
	return "1080p", true
}

// datePartition returns the year-month output partition, e.g. "2608/".
func datePartition(t time.Time) string {
	return t.Format("0601") + "/"
}

// Process encrypts every segment the playlist enumerates and returns the
// media descriptor. Segments listed but missing on disk are skipped with a
// warning; the descriptor still counts them, since the playlist is the
// source of truth for playback.
func (p *Processor) Process(ctx context.Context, playlistPath string) (Result, error) {
	pl, err := parsePlaylist(playlistPath)
	if err != nil {
		return Result{}, err
	}

	base := filepath.Base(playlistPath)
	code := ChunkCode(p.cfg.Secret, base)
	token := AccessToken(p.cfg.Secret, code)
	key := DeriveKey(p.cfg.Secret, token)

	rung, highDef := rungOf(playlistPath)
	partition := datePartition(p.now())
	outDir := filepath.Join(p.cfg.OutputRoot, rung, partition)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("mkdir %s: %w", outDir, err)
	}

	srcDir := filepath.Dir(playlistPath)
	chunkPaths := make([]string, len(pl.Segments))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	for i, segment := range pl.Segments {
		wg.Add(1)
		go func(i int, segment string) {
			defer wg.Done()
			p.sem <- struct{}{}
			defer func() { <-p.sem }()

			srcPath := filepath.Join(srcDir, segment)
			dstPath := filepath.Join(outDir, ChunkName(p.cfg.Secret, code, i))
			if _, err := os.Stat(srcPath); err != nil {
				p.log.Warn("segment listed in playlist but missing", "playlist", base, "segment", segment)
				return
			}
			if err := p.encryptFile(srcPath, dstPath, key); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			mu.Lock()
			chunkPaths[i] = dstPath
			mu.Unlock()
		}(i, segment)
	}
	wg.Wait()
	if firstErr != nil {
		return Result{}, firstErr
	}

	written := chunkPaths[:0]
	for _, cp := range chunkPaths {
		if cp != "" {
			written = append(written, cp)
		}
	}

	desc := mediacode.Descriptor{
		Version:       mediacode.FormatVersion,
		TimeUnit:      mediacode.TimeUnit,
		Durations:     pl.Durations,
		SegmentCount:  len(pl.Segments),
		ChunkCode:     code,
		AccessToken:   token,
		DatePartition: partition,
	}
	encoded, err := mediacode.Encode(desc)
	if err != nil {
		return Result{}, fmt.Errorf("encode media code: %w", err)
	}

	ids, parsed := ParseSourceIDs(base)
	if !parsed {
		p.log.Info("playlist name carries no business ids, catalog step will be skipped", "playlist", base)
	}

	p.log.Info("playlist processed", "playlist", base, "rung", rung, "segments", len(pl.Segments), "chunks", len(written))
	return Result{
		Rung:           rung,
		HighDefinition: highDef,
		OutputDir:      outDir,
		ChunkPaths:     written,
		Descriptor:     desc,
		MediaCode:      encoded,
		IDs:            ids,
		IDsParsed:      parsed,
	}, nil
}

func (p *Processor) encryptFile(srcPath, dstPath string, key []byte) error {
	plaintext, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read segment %s: %w", srcPath, err)
	}
	ciphertext, err := encryptAES128CBC(plaintext, key)
	if err != nil {
		return fmt.Errorf("encrypt segment %s: %w", srcPath, err)
	}
	if err := os.WriteFile(dstPath, ciphertext, 0o644); err != nil {
		return fmt.Errorf("write chunk %s: %w", dstPath, err)
	}
	return nil
}
