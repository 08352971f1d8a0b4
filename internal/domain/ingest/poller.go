package ingest

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/inthisone/dashcore/internal/events"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// run is one source's poll loop. The first fetch happens immediately; after
// that the loop sleeps for the failure-adjusted interval, waking early for
// nudges from Refresh, RefreshAll, or the file watcher.
func (m *Manager) run(ctx context.Context, src *source) {
	defer m.wg.Done()

	m.fetchOnce(ctx, src)
	for {
		wait := src.tracker.NextInterval(time.Duration(src.cfg.PollInterval))
		src.mu.Lock()
		src.nextPoll = m.clock.Now().Add(wait)
		src.mu.Unlock()

		select {
		case <-ctx.Done():
			src.mu.Lock()
			src.state = types.SourceStopped
			src.mu.Unlock()
			return
		case reply := <-src.nudge:
			err := m.fetchOnce(ctx, src)
			if reply != nil {
				reply <- err
			}
		case <-m.clock.After(wait):
			m.fetchOnce(ctx, src)
		}
	}
}

// watchFile nudges the poller when the watched file changes, so edits show
// up ahead of the next scheduled poll. A failed watch is non-fatal; polling
// continues on schedule.
func (m *Manager) watchFile(ctx context.Context, src *source) {
	target := filepath.Clean(src.cfg.URI)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.logger.Debug("file watch unavailable",
			zap.String("source_id", src.id),
			zap.Error(err))
		return
	}
	// Watch the directory: editors replace files by rename, which drops a
	// watch on the file itself
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		m.logger.Debug("file watch failed",
			zap.String("path", target),
			zap.Error(err))
		watcher.Close()
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case src.nudge <- nil:
				default:
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Debug("file watch error",
					zap.String("source_id", src.id),
					zap.Error(werr))
			}
		}
	}()
}

// fetchOnce runs a single fetch attempt and records its outcome
func (m *Manager) fetchOnce(ctx context.Context, src *source) error {
	// Queued waiters do not burn their fetch timeout; it starts after a
	// slot opens
	if err := m.fetchSlots.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.fetchSlots.Release(1)

	fetcher := m.fetchers[src.cfg.Kind]

	fctx, cancel := context.WithTimeout(ctx, m.settings.FetchTimeout)
	start := m.clock.Now()
	res, err := fetcher.Fetch(fctx, src.cfg)
	cancel()
	elapsed := m.clock.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown, not a source fault
			return err
		}
		m.metrics.RecordFetch(string(src.cfg.Kind), "error", elapsed)
		m.recordFailure(src, err)
		return err
	}

	m.metrics.RecordFetch(string(src.cfg.Kind), "ok", elapsed)
	m.recordSuccess(src, res)
	return nil
}

// recordSuccess writes through to the cache and publishes a change event
// when the content hash moved. The first fetch always publishes, even when a
// warm-started cache already holds identical bytes, so late-binding widgets
// get their initial paint.
func (m *Manager) recordSuccess(src *source, res *Result) {
	hash := m.digest.Digest(res.Raw)
	now := m.clock.Now()

	src.mu.Lock()
	changed := !src.fetched || hash != src.lastHash
	src.fetched = true
	src.lastHash = hash
	src.lastFetch = now
	src.failures = 0
	src.lastErr = ""
	src.mu.Unlock()

	src.tracker.Success()

	if m.cache != nil {
		// Cache before event: subscribers react to the event by reading
		m.cache.PutEntry(types.CacheEntry{
			SourceID:  src.id,
			Payload:   res.Payload,
			Raw:       res.Raw,
			Size:      int64(len(res.Raw)),
			FetchedAt: now,
			TTL:       src.cfg.TTL,
			Hash:      hash,
		})
	}

	if !changed {
		m.logger.Debug("source content unchanged", zap.String("source_id", src.id))
		return
	}
	if m.bus != nil {
		m.bus.Publish(src.id, events.TypeDataChanged, types.DataChanged{
			SourceID:  src.id,
			FetchedAt: now,
		})
	}
	m.logger.Debug("source data changed",
		zap.String("source_id", src.id),
		zap.String("hash", m.digest.ShortDigest(hash)))
}

// recordFailure counts the failure; the tracker's state-change hook takes
// care of the health event when a threshold is crossed
func (m *Manager) recordFailure(src *source, err error) {
	src.mu.Lock()
	src.failures++
	src.lastErr = err.Error()
	consecutive := src.failures
	src.mu.Unlock()

	src.tracker.Failure()

	m.logger.Warn("source fetch failed",
		zap.String("source_id", src.id),
		zap.String("kind", string(src.cfg.Kind)),
		zap.Int("consecutive", consecutive),
		zap.Error(err))
}
