package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/keyhub-dev/keyhub/internal/panel"
	"github.com/keyhub-dev/keyhub/internal/repository"
)

// Prober answers whether a panel server is reachable. A probe is a real
// authentication handshake, not a TCP ping: a panel that accepts
// connections but rejects the admin login is as useless as a dead one.
type Prober struct {
	factory *panel.Factory
	timeout time.Duration
	logger  *slog.Logger
}

// NewProber constructs a Prober with the given hard timeout per probe.
func NewProber(factory *panel.Factory, timeout time.Duration, logger *slog.Logger) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{factory: factory, timeout: timeout, logger: logger}
}

// Probe reports whether the server answered its login handshake within the
// timeout. It never returns an error: every failure mode, including a
// misconfigured directory row, classifies the server as unreachable.
func (p *Prober) Probe(ctx context.Context, server *repository.Server) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	client, err := p.factory.ClientFor(server)
	if err != nil {
		p.logger.Warn("probe skipped", "server", server.Name, "panel", server.PanelType, "error", err)
		return false
	}
	if err := client.Login(ctx); err != nil {
		p.logger.Warn("server unreachable", "server", server.Name, "panel", server.PanelType, "error", err)
		return false
	}
	p.logger.Info("server reachable", "server", server.Name, "panel", server.PanelType)
	return true
}
