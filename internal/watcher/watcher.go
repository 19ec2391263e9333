// Package watcher reacts to files landing in the three pipeline directory
// roles: raw uploads, per-rung playlists, and encrypted chunk output. It only
// confirms stability and hands work off; it never transcodes or encrypts
// inline.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"vodvault/internal/stability"
)

// Enqueuer admits deduplicated pipeline jobs for stable files.
type Enqueuer interface {
	EnqueueSource(ctx context.Context, path string) bool
	EnqueuePlaylist(ctx context.Context, path string) bool
}

// Publisher pushes a stable encrypted chunk to object storage.
type Publisher interface {
	Publish(ctx context.Context, localPath, rung, relPath string) error
}

type Role int

const (
	RoleUpload Role = iota + 1
	RolePlaylist
	RoleEncrypted
)

type Config struct {
	UploadDir  string
	ConvertDir string
	EncryptDir string
}

type Watcher struct {
	cfg      Config
	fw       *fsnotify.Watcher
	detector *stability.Detector
	enqueue  Enqueuer
	publish  Publisher // nil disables publication
	log      hclog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, detector *stability.Detector, enqueue Enqueuer, publish Publisher, log hclog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		cfg:      cfg,
		fw:       fw,
		detector: detector,
		enqueue:  enqueue,
		publish:  publish,
		log:      log.Named("watcher"),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// roots returns every directory role the watcher covers. The convert and
// encrypt trees are watched per rung, mirroring how the transcoder and
// chunker lay out their output.
func (w *Watcher) roots() []string {
	return []string{
		w.cfg.UploadDir,
		filepath.Join(w.cfg.ConvertDir, "720p"),
		filepath.Join(w.cfg.ConvertDir, "1080p"),
		filepath.Join(w.cfg.EncryptDir, "720p"),
		filepath.Join(w.cfg.EncryptDir, "1080p"),
	}
}

func (w *Watcher) Start() error {
	for _, root := range w.roots() {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return err
		}
		if err := w.addRecursive(root); err != nil {
			return err
		}
		w.log.Info("watching", "dir", root)
	}
	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) Stop() {
	w.cancel()
	_ = w.fw.Close()
	w.wg.Wait()
}

// addRecursive registers path and every directory below it. fsnotify watches
// are not recursive on their own.
func (w *Watcher) addRecursive(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fw.Add(p)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			w.handleCreate(event.Name)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleCreate(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		// A new partition directory: watch it and sweep files that landed
		// before the watch was in place.
		if err := w.addRecursive(path); err != nil {
			w.log.Error("watch add failed", "dir", path, "error", err)
		}
		_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			w.dispatchAsync(p)
			return nil
		})
		return
	}
	w.dispatchAsync(path)
}

// dispatchAsync confirms stability and routes the file on a dedicated
// goroutine, since the stability wait blocks for seconds.
func (w *Watcher) dispatchAsync(path string) {
	role, ok := w.roleOf(path)
	if !ok {
		return
	}
	if role == RolePlaylist && !strings.HasSuffix(path, ".m3u8") {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.detector.Wait(w.ctx, path); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Warn("file never stabilized", "path", path, "error", err)
			return
		}
		w.route(role, path)
	}()
}

func (w *Watcher) route(role Role, path string) {
	switch role {
	case RoleUpload:
		w.log.Info("upload stable", "path", path)
		w.enqueue.EnqueueSource(w.ctx, path)
	case RolePlaylist:
		w.log.Info("playlist stable", "path", path)
		w.enqueue.EnqueuePlaylist(w.ctx, path)
	case RoleEncrypted:
		if w.publish == nil {
			return
		}
		rung, relPath, err := w.splitEncrypted(path)
		if err != nil {
			w.log.Warn("chunk outside rung tree", "path", path, "error", err)
			return
		}
		w.log.Info("chunk stable, publishing", "path", path)
		if err := w.publish.Publish(w.ctx, path, rung, relPath); err != nil {
			w.log.Error("publish failed", "path", path, "error", err)
		}
	}
}

func (w *Watcher) roleOf(path string) (Role, bool) {
	switch {
	case within(w.cfg.UploadDir, path):
		return RoleUpload, true
	case within(w.cfg.ConvertDir, path):
		return RolePlaylist, true
	case within(w.cfg.EncryptDir, path):
		return RoleEncrypted, true
	default:
		return 0, false
	}
}

// splitEncrypted resolves the rung label and the path relative to the rung
// root, which together form the remote object key.
func (w *Watcher) splitEncrypted(path string) (rung, relPath string, err error) {
	rel, err := filepath.Rel(w.cfg.EncryptDir, path)
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(filepath.ToSlash(rel), "/", 2)
	if len(parts) != 2 {
		return "", "", errors.New("no rung component")
	}
	return parts[0], parts[1], nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
