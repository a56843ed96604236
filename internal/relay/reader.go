package relay

import "time"

// ReadOptions controls how Read waits for new frames.
type ReadOptions struct {
	// Long, if true, makes Read block (up to KeepAlive) for a frame to
	// become ready before returning, instead of returning immediately.
	Long bool

	// BatchMillis, if non-zero, asks Read to keep collecting frames for
	// an extra span after it wakes, capped at Config.MaxBatchDuration,
	// so a burst of closely-spaced upstream frames can be delivered in
	// one response instead of many.
	BatchMillis int

	// OnWait, if set, is called with the time this Read spent between
	// starting its wait and returning, including any batch sleep.
	OnWait func(time.Duration)
}

// Read performs one long-poll read against s. The second return is false
// only when the session has nothing buffered and its upstream connection is
// already gone — the caller's signal to answer with a not-alive error
// instead of an empty success. A session with nothing buffered but still
// alive, or a dead session that still has a closing frame to deliver, both
// report true.
func Read(s *Session, cfg Config, opts ReadOptions) ([]Frame, bool) {
	ready, alive := s.snapshotReadyAlive()
	if !ready && !alive {
		return nil, false
	}
	s.touchPoll()

	start := time.Now()
	if opts.Long && !ready {
		wait := s.waitChannel()
		select {
		case <-wait:
		case <-time.After(cfg.KeepAlive):
			if opts.OnWait != nil {
				opts.OnWait(time.Since(start))
			}
			return nil, true
		}
	}

	if opts.BatchMillis > 0 {
		d := time.Duration(opts.BatchMillis) * time.Millisecond
		if d > cfg.MaxBatchDuration {
			d = cfg.MaxBatchDuration
		}
		time.Sleep(d)
	}

	if opts.OnWait != nil {
		opts.OnWait(time.Since(start))
	}
	return s.drain(), true
}
