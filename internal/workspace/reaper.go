// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package workspace

import (
	"context"
	"log/slog"
	"time"
)

// StartReaper sweeps once immediately and then on every tick of interval
// until ctx is cancelled. The returned channel is closed when the reaper
// goroutine has exited.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		m.sweepAndLog(time.Now())
		for {
			select {
			case now := <-ticker.C:
				m.sweepAndLog(now)
			case <-ctx.Done():
				slog.Info("workspace reaper stopped", "root", m.root)
				return
			}
		}
	}()
	return done
}

func (m *Manager) sweepAndLog(now time.Time) {
	if _, err := m.Sweep(now); err != nil {
		slog.Error("workspace sweep failed", "root", m.root, "error", err)
	}
}
