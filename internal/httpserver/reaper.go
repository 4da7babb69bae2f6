// internal/httpserver/reaper.go
//
// Background cleanup of live sessions.
//   - RunReaper closes sessions nobody has touched within SESSION_IDLE_TTL.
//   - CloseSessions tears every session down on shutdown.

package httpserver

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunReaper periodically closes sessions idle for longer than ttl. Sessions
// with a connected websocket are never reaped. Returns when ctx is done.
func (s *Server) RunReaper(ctx context.Context, every, ttl time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.reapIdle(ctx, now.Add(-ttl))
		}
	}
}

// reapIdle closes and removes idle sessions last used before cutoff.
func (s *Server) reapIdle(ctx context.Context, cutoff time.Time) int {
	expired, err := s.store.Expired(ctx, cutoff)
	if err != nil {
		log.Warn().Err(err).Msg("list idle sessions")
		return 0
	}
	n := 0
	for _, sess := range expired {
		if sess.Game.Subscribers() > 0 {
			continue
		}
		sess.Game.Close()
		_ = s.store.Delete(ctx, sess.Game.ID())
		n++
	}
	if n > 0 {
		log.Info().Int("sessions", n).Msg("reaped idle sessions")
	}
	return n
}

// CloseSessions tears down every live session (used on shutdown).
func (s *Server) CloseSessions(ctx context.Context) {
	all, err := s.store.All(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("list sessions")
		return
	}
	for _, sess := range all {
		sess.Game.Close()
		_ = s.store.Delete(ctx, sess.Game.ID())
	}
	log.Info().Int("sessions", len(all)).Msg("closed sessions")
}
