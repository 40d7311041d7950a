package security

import (
	"net"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

var cloudMetadataHosts = map[string]struct{}{
	"169.254.169.254":      {},
	"metadata.google.internal": {},
	"metadata.azure.internal":  {},
}

// ValidateNetworkAccess decides whether an outbound connection to host:port
// is permitted under the policy. Loopback, link-local, multicast,
// broadcast, and cloud-metadata addresses are always denied regardless of
// the allow/block domain lists.
func (m *Mediator) ValidateNetworkAccess(host string, port int) bool {
	if !m.policy.AllowNetwork() {
		return false
	}
	if isDangerousHost(host) {
		return false
	}
	if m.policy.IsDomainBlocked(host) {
		return false
	}
	if !m.policy.IsDomainAllowed(host) {
		return false
	}
	if !m.allowHostRate(host) {
		return false
	}
	return true
}

func isDangerousHost(host string) bool {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if _, blocked := cloudMetadataHosts[h]; blocked {
		return true
	}
	if strings.Contains(h, "metadata") && strings.HasSuffix(h, ".internal") {
		return true
	}
	if h == "localhost" {
		return true
	}

	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil && ip4[0] == 255 && ip4[1] == 255 && ip4[2] == 255 && ip4[3] == 255 {
		return true
	}
	return false
}

// hostLimiters tracks a per-host token bucket so one domain cannot be
// hammered even when allowed.
type hostLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newHostLimiters() *hostLimiters {
	return &hostLimiters{limiters: make(map[string]*rate.Limiter)}
}

func (h *hostLimiters) allow(host string, rps float64, burst int) bool {
	h.mu.Lock()
	lim, ok := h.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(rps), burst)
		h.limiters[host] = lim
	}
	h.mu.Unlock()
	return lim.Allow()
}

func (m *Mediator) allowHostRate(host string) bool {
	return m.netLimiters.allow(host, m.networkRatePerSec, m.networkBurst)
}

// SetupNetworkIsolation is a no-op in the directory-scoped fallback. A
// container-backed isolate should call its own network-mode switch
// (handled by internal/isolate, which owns the container handle).
func (m *Mediator) SetupNetworkIsolation() error {
	return nil
}
