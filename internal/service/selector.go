package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/keyhub-dev/keyhub/internal/repository"
)

// SelectorService narrows a cluster down to its currently reachable
// members by probing every candidate concurrently.
type SelectorService struct {
	servers repository.ServerRepository
	prober  *Prober
	logger  *slog.Logger
}

// NewSelectorService assembles the selector dependencies.
func NewSelectorService(servers repository.ServerRepository, prober *Prober, logger *slog.Logger) *SelectorService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SelectorService{servers: servers, prober: prober, logger: logger}
}

// AvailableServers returns the names of cluster members that answered
// their probe, in directory order. An empty cluster or a cluster with no
// reachable members yields an empty slice, not an error.
func (s *SelectorService) AvailableServers(ctx context.Context, cluster string) ([]string, error) {
	servers, err := s.servers.ListByCluster(ctx, cluster)
	if err != nil {
		return nil, err
	}
	return s.probeAll(ctx, cluster, servers), nil
}

// AvailableServersExcluding behaves like AvailableServers but drops one
// member, so a key migrating away from a server can never land back on it.
func (s *SelectorService) AvailableServersExcluding(ctx context.Context, cluster, exclude string) ([]string, error) {
	servers, err := s.servers.ListByClusterExcluding(ctx, cluster, exclude)
	if err != nil {
		return nil, err
	}
	return s.probeAll(ctx, cluster, servers), nil
}

// ClusterOf resolves which cluster a server belongs to.
func (s *SelectorService) ClusterOf(ctx context.Context, serverName string) (string, error) {
	cluster, err := s.servers.ClusterOf(ctx, serverName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return cluster, nil
}

// LeastLoadedCluster picks the cluster with the fewest issued keys.
func (s *SelectorService) LeastLoadedCluster(ctx context.Context) (string, error) {
	cluster, err := s.servers.LeastLoadedCluster(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNoServersAvailable
		}
		return "", err
	}
	return cluster, nil
}

// probeAll fans one goroutine out per server and correlates results back
// by index. A failed probe only removes its own server from the answer.
func (s *SelectorService) probeAll(ctx context.Context, cluster string, servers []*repository.Server) []string {
	results := make([]bool, len(servers))
	var wg sync.WaitGroup
	for i, server := range servers {
		wg.Add(1)
		go func(index int, srv *repository.Server) {
			defer wg.Done()
			results[index] = s.prober.Probe(ctx, srv)
		}(i, server)
	}
	wg.Wait()

	available := make([]string, 0, len(servers))
	for i, server := range servers {
		if results[i] {
			available = append(available, server.Name)
		}
	}
	if len(available) == 0 {
		s.logger.Warn("no reachable servers in cluster", "cluster", cluster, "candidates", len(servers))
	}
	return available
}
