// Package chain wires the per-chain services into the closed registry the
// rest of the daemon resolves chains against.
package chain

import (
	"fmt"

	"github.com/harborwallet/harbor/internal/core/domain"
	"github.com/harborwallet/harbor/internal/core/ports"
)

type registry struct {
	services map[domain.Chain]ports.ChainService
}

// NewRegistry returns a registry over the given services, rejecting
// duplicates and services for unknown chains.
func NewRegistry(services ...ports.ChainService) (ports.ChainRegistry, error) {
	if len(services) <= 0 {
		return nil, fmt.Errorf("missing chain services")
	}

	byChain := make(map[domain.Chain]ports.ChainService)
	for _, svc := range services {
		chain := svc.Chain()
		if !chain.IsValid() {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidChain, chain)
		}
		if _, ok := byChain[chain]; ok {
			return nil, fmt.Errorf("duplicate service for chain %s", chain)
		}
		byChain[chain] = svc
	}
	return &registry{services: byChain}, nil
}

func (r *registry) Service(chain domain.Chain) (ports.ChainService, error) {
	svc, ok := r.services[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrChainNotSupported, chain)
	}
	return svc, nil
}

// Services returns the registered services in the stable chain order.
func (r *registry) Services() []ports.ChainService {
	services := make([]ports.ChainService, 0, len(r.services))
	for _, chain := range domain.SupportedChains() {
		if svc, ok := r.services[chain]; ok {
			services = append(services, svc)
		}
	}
	return services
}
