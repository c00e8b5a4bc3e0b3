package config

import (
	"github.com/deqinio/actorcore/actor"
	"github.com/deqinio/actorcore/internal/workerpool"
)

// Apply pushes cfg's core-visible knobs onto engine and the process-wide
// workerpool throughput budget. ListenAddr/TransportBackend/
// PersistenceBackend are not read here; code that builds a transport
// backend or the persistence.Hook wiring reads them directly. Apply only
// touches Throughput, MaxCredit and LowWatermark, three of the knobs
// spec.md §6 names as crossing into the core.
func Apply(cfg Config, engine *actor.Engine) {
	engine.Reconfigure(cfg.MaxCredit, cfg.LowWatermark)
	workerpool.SetThroughput(cfg.Throughput)
}
