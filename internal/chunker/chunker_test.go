package chunker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodvault/internal/mediacode"
)

func writePlaylist(t *testing.T, dir, base string, n int) string {
	t.Helper()
	content := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:8\n#EXT-X-PLAYLIST-TYPE:VOD\n"
	for i := 0; i < n; i++ {
		seg := fmt.Sprintf("%s_segment_%03d.ts", base, i)
		dur := 8.0
		if i == n-1 {
			dur = 3.24
		}
		content += fmt.Sprintf("#EXTINF:%.6f,\n%s\n", dur, seg)
		require.NoError(t, os.WriteFile(filepath.Join(dir, seg), []byte(fmt.Sprintf("segment %d payload", i)), 0o644))
	}
	content += "#EXT-X-ENDLIST\n"
	path := filepath.Join(dir, base+".m3u8")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestProcessor(t *testing.T, outputRoot string) *Processor {
	t.Helper()
	p := New(Config{Secret: secret, OutputRoot: outputRoot}, 4, hclog.NewNullLogger())
	p.now = func() time.Time { return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestProcessEncryptsEverySegment(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "720p")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	playlistPath := writePlaylist(t, srcDir, "u7_24010114_42_0000", 4)

	outRoot := t.TempDir()
	p := newTestProcessor(t, outRoot)

	res, err := p.Process(context.Background(), playlistPath)
	require.NoError(t, err)

	assert.Equal(t, "720p", res.Rung)
	assert.False(t, res.HighDefinition)
	assert.Equal(t, filepath.Join(outRoot, "720p", "2608/"), res.OutputDir)
	assert.Len(t, res.ChunkPaths, 4)
	for _, cp := range res.ChunkPaths {
		info, err := os.Stat(cp)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
		assert.Equal(t, ChunkExt, filepath.Ext(cp))
	}

	assert.Equal(t, 4, res.Descriptor.SegmentCount)
	assert.Equal(t, []float64{8, 8, 8, 3.2}, res.Descriptor.Durations)
	assert.Equal(t, "2608/", res.Descriptor.DatePartition)

	require.True(t, res.IDsParsed)
	assert.Equal(t, int64(7), res.IDs.UserID)
	assert.Equal(t, int64(42), res.IDs.PostID)
	assert.Equal(t, "0000", res.IDs.CollectionCode)
}

func TestProcessChunkContentDecrypts(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "720p")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	playlistPath := writePlaylist(t, srcDir, "clip", 2)

	p := newTestProcessor(t, t.TempDir())
	res, err := p.Process(context.Background(), playlistPath)
	require.NoError(t, err)

	key := DeriveKey(secret, res.Descriptor.AccessToken)
	ciphertext, err := os.ReadFile(res.ChunkPaths[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("segment 0 payload"), decryptAES128CBC(t, ciphertext, key))
}

func TestProcessIsIdempotent(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "1080p")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	playlistPath := writePlaylist(t, srcDir, "u9_24051010_77_0012", 3)

	outRoot := t.TempDir()
	p := newTestProcessor(t, outRoot)

	first, err := p.Process(context.Background(), playlistPath)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), playlistPath)
	require.NoError(t, err)

	assert.Equal(t, first.MediaCode, second.MediaCode)
	assert.Equal(t, first.ChunkPaths, second.ChunkPaths)
	assert.Equal(t, first.Descriptor.ChunkCode, second.Descriptor.ChunkCode)
	assert.Equal(t, first.Descriptor.AccessToken, second.Descriptor.AccessToken)
	assert.Equal(t, "1080p", second.Rung)
	assert.True(t, second.HighDefinition)
}

func TestProcessMediaCodeDecodes(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "720p")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	playlistPath := writePlaylist(t, srcDir, "u7_24010114_42_0000", 5)

	p := newTestProcessor(t, t.TempDir())
	res, err := p.Process(context.Background(), playlistPath)
	require.NoError(t, err)

	decoded, err := mediacode.Decode(res.MediaCode)
	require.NoError(t, err)
	assert.Equal(t, res.Descriptor, decoded)
	assert.Equal(t, 5, decoded.SegmentCount)
}

func TestProcessSkipsMissingSegments(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "720p")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	playlistPath := writePlaylist(t, srcDir, "gappy", 3)
	require.NoError(t, os.Remove(filepath.Join(srcDir, "gappy_segment_001.ts")))

	p := newTestProcessor(t, t.TempDir())
	res, err := p.Process(context.Background(), playlistPath)
	require.NoError(t, err)

	// Playlist stays the source of truth for the count.
	assert.Equal(t, 3, res.Descriptor.SegmentCount)
	assert.Len(t, res.ChunkPaths, 2)
}

func TestProcessUnparsableNameStillSucceeds(t *testing.T) {
	srcDir := filepath.Join(t.TempDir(), "720p")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))
	playlistPath := writePlaylist(t, srcDir, "holiday-video", 2)

	p := newTestProcessor(t, t.TempDir())
	res, err := p.Process(context.Background(), playlistPath)
	require.NoError(t, err)
	assert.False(t, res.IDsParsed)
	assert.NotEmpty(t, res.MediaCode)
}

func TestParseSourceIDs(t *testing.T) {
	ids, ok := ParseSourceIDs("u7_24010114_42_0000.m3u8")
	require.True(t, ok)
	assert.Equal(t, int64(7), ids.UserID)
	assert.Equal(t, int64(42), ids.PostID)
	assert.Equal(t, "0000", ids.CollectionCode)
	assert.Equal(t, time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), ids.CreatedAt)

	_, ok = ParseSourceIDs("random_name.m3u8")
	assert.False(t, ok)
	_, ok = ParseSourceIDs("u7_2401011_42_0000.m3u8")
	assert.False(t, ok)
}
