// Package pipeline wires the protection stages together: deduplicated
// enqueue of watcher events, and the worker handler that segments uploads,
// encrypts playlists, and reconciles the catalog.
package pipeline

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"vodvault/internal/chunker"
	"vodvault/internal/dedup"
	"vodvault/internal/metrics"
	"vodvault/internal/queue"
	"vodvault/internal/segmenter"
)

// Cataloger is the catalog reconciliation collaborator.
type Cataloger interface {
	Upsert(ctx context.Context, ids chunker.SourceIDs, mediaCode string, highDefinition bool) error
}

type Pipeline struct {
	ctx      context.Context
	leases   dedup.LeaseStore
	jobs     *queue.Queue
	seg      *segmenter.Segmenter
	chk      *chunker.Processor
	catalog  Cataloger // nil disables catalog reconciliation
	metrics  *metrics.Registry
	log      hclog.Logger
	leaseTTL time.Duration
}

func New(ctx context.Context, leases dedup.LeaseStore, jobs *queue.Queue, seg *segmenter.Segmenter, chk *chunker.Processor, catalog Cataloger, m *metrics.Registry, leaseTTL time.Duration, log hclog.Logger) *Pipeline {
	return &Pipeline{
		ctx:      ctx,
		leases:   leases,
		jobs:     jobs,
		seg:      seg,
		chk:      chk,
		catalog:  catalog,
		metrics:  m,
		log:      log.Named("pipeline"),
		leaseTTL: leaseTTL,
	}
}

// EnqueueSource admits a segmentation job for a stable upload. Returns false
// when a lease for the same task key is already held (duplicate suppressed)
// or the queue is full.
func (p *Pipeline) EnqueueSource(ctx context.Context, path string) bool {
	return p.enqueue(ctx, queue.Job{TaskKey: "segment:" + path, Kind: queue.JobSegment, Path: path})
}

// EnqueuePlaylist admits an encryption job for a stable playlist.
func (p *Pipeline) EnqueuePlaylist(ctx context.Context, path string) bool {
	return p.enqueue(ctx, queue.Job{TaskKey: "encrypt:" + path, Kind: queue.JobEncrypt, Path: path})
}

func (p *Pipeline) enqueue(ctx context.Context, job queue.Job) bool {
	ok, err := p.leases.Acquire(ctx, job.TaskKey, p.leaseTTL)
	if err != nil {
		p.log.Error("lease acquire failed", "task", job.TaskKey, "error", err)
		return false
	}
	if !ok {
		p.metrics.DuplicatesSuppressed.Add(1)
		p.log.Debug("duplicate enqueue suppressed", "task", job.TaskKey)
		return false
	}
	if !p.jobs.Enqueue(job) {
		// Queue full: give the lease back so a later event can retry.
		if err := p.leases.Release(ctx, job.TaskKey); err != nil {
			p.log.Error("lease release failed", "task", job.TaskKey, "error", err)
		}
		p.log.Warn("queue full, job dropped", "task", job.TaskKey)
		return false
	}
	p.metrics.QueuedJobs.Add(1)
	return true
}

// Handle is the worker entry point. The lease is released whatever the
// outcome, so a failed job can be retried by a fresh enqueue instead of
// blocking until the TTL runs out.
func (p *Pipeline) Handle(job queue.Job) {
	p.metrics.QueuedJobs.Add(-1)
	p.metrics.ActiveJobs.Add(1)
	defer p.metrics.ActiveJobs.Add(-1)
	defer func() {
		if err := p.leases.Release(context.Background(), job.TaskKey); err != nil {
			p.log.Error("lease release failed", "task", job.TaskKey, "error", err)
		}
	}()

	var err error
	switch job.Kind {
	case queue.JobSegment:
		err = p.handleSegment(job)
	case queue.JobEncrypt:
		err = p.handleEncrypt(job)
	}
	if err != nil {
		p.metrics.FailedJobs.Add(1)
		p.log.Error("job failed", "task", job.TaskKey, "kind", job.Kind.String(), "error", err)
		return
	}
	p.metrics.CompletedJobs.Add(1)
}

func (p *Pipeline) handleSegment(job queue.Job) error {
	results, err := p.seg.Segment(p.ctx, job.Path, job.SegmentSeconds, job.FrameRate)
	if err != nil {
		// Partial rung outputs stay on disk for inspection; the re-enqueue
		// path is idempotent since all filenames are deterministic.
		return err
	}
	for _, res := range results {
		p.log.Info("rung complete", "task", job.TaskKey, "rung", res.Rung.Label, "playlist", res.PlaylistPath)
	}
	return nil
}

func (p *Pipeline) handleEncrypt(job queue.Job) error {
	res, err := p.chk.Process(p.ctx, job.Path)
	if err != nil {
		return err
	}
	if res.IDsParsed && p.catalog != nil {
		if err := p.catalog.Upsert(p.ctx, res.IDs, res.MediaCode, res.HighDefinition); err != nil {
			return err
		}
	}
	return nil
}
