// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Filipe Johansson

package echo

import (
	"context"
	"time"

	"github.com/FilipeJohansson/sioecho"
)

// ReportStats logs a summary of stats every interval until ctx is done.
func (s *Server) ReportStats(ctx context.Context, every time.Duration, stats func() sioecho.Stats) error {
	if every <= 0 {
		return ErrInvalidInterval
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st := stats()
			s.logger.Log(sioecho.LogTypeServer, sioecho.LogLevelInfo,
				"stats: active=%d total=%d events=%d acks=%d errors=%d uptime=%s",
				st.ActiveConnections, st.TotalConnections, st.EventsReceived, st.AcksSent, st.ErrorCount,
				st.Uptime.Round(time.Second))
		}
	}
}
