package gateway

import (
	"fmt"
	"sort"
	"time"

	"github.com/wudi/docgateway/internal/config"
)

// ReloadResult represents the outcome of a config reload.
type ReloadResult struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
	Changes   []string  `json:"changes,omitempty"`
}

// Reload atomically replaces the pipeline and router with ones built from
// newCfg. The listener, metrics and tracer are kept.
func (g *Gateway) Reload(newCfg *config.Config) ReloadResult {
	result := ReloadResult{Timestamp: time.Now()}

	st, err := g.buildState(newCfg)
	if err != nil {
		result.Error = err.Error()
		g.metrics.RecordReload(false)
		return result
	}

	old := g.state.Swap(st)
	result.Success = true
	result.Changes = diffConfig(old.config, newCfg)
	g.metrics.RecordReload(true)
	return result
}

// diffConfig summarizes what a reload changes for operators.
func diffConfig(oldCfg, newCfg *config.Config) []string {
	var changes []string

	oldKeys := endpointIndex(oldCfg.Swagger.Endpoints)
	newKeys := endpointIndex(newCfg.Swagger.Endpoints)
	for key, n := range newKeys {
		o, ok := oldKeys[key]
		switch {
		case !ok:
			changes = append(changes, "endpoint added: "+key)
		case o != n:
			changes = append(changes, fmt.Sprintf("endpoint %s versions: %d -> %d", key, o, n))
		}
	}
	for key := range oldKeys {
		if _, ok := newKeys[key]; !ok {
			changes = append(changes, "endpoint removed: "+key)
		}
	}
	sort.Strings(changes)

	if len(oldCfg.Routes) != len(newCfg.Routes) {
		changes = append(changes, fmt.Sprintf("routes: %d -> %d", len(oldCfg.Routes), len(newCfg.Routes)))
	}
	if oldCfg.Swagger.PathPrefix != newCfg.Swagger.PathPrefix {
		changes = append(changes, fmt.Sprintf("path prefix: %s -> %s", oldCfg.Swagger.PathPrefix, newCfg.Swagger.PathPrefix))
	}
	if oldCfg.Transport != newCfg.Transport {
		changes = append(changes, "transport settings changed")
	}
	if oldCfg.Server.Address != newCfg.Server.Address {
		changes = append(changes, "server address change requires a restart")
	}
	return changes
}

func endpointIndex(eps []config.EndpointConfig) map[string]int {
	idx := make(map[string]int, len(eps))
	for _, ep := range eps {
		idx[ep.Key] = len(ep.Versions)
	}
	return idx
}
