// Package config loads the engine-wide defaults spec.md §6 leaves as
// external knobs (the default throughput budget, max_credit,
// low_watermark, listen address, and transport backend selection) from a
// TOML file, and can watch that file for edits and push changed values
// onto Watcher.Changes. None of this crosses into actor-handler code;
// Apply hands only three of the core-visible knobs named in spec.md §6
// (throughput, max_credit, low_watermark) to the engine.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Config is the full set of engine-wide defaults this package loads, in
// the teacher's System.Enable*/BaseActorOptions register-programmatically
// style, generalized to a file (pingcap-tiflow's
// engine/servermaster/config.go is the corpus's only TOML-based config
// loader, and is what this package's Load/Save pair is grounded on).
type Config struct {
	// Throughput is the default per-resume() envelope budget
	// (internal/workerpool.SetThroughput).
	Throughput int `toml:"throughput"`
	// MaxCredit and LowWatermark are the default flow-control knobs every
	// new control block is built with (actor.Engine.Reconfigure).
	MaxCredit    uint64 `toml:"max_credit"`
	LowWatermark uint64 `toml:"low_watermark"`
	// ListenAddr is the address a transport backend binds to when the
	// engine enables remoting.
	ListenAddr string `toml:"listen_addr"`
	// TransportBackend selects which package transport backend
	// ListenAddr applies to: "grpc", "quic", or "kcp".
	TransportBackend string `toml:"transport_backend"`
	// PersistenceBackend selects a persistence.Store: "wal", or a DSN
	// ("sqlite://...", "mysql://...", "postgres://...").
	PersistenceBackend string `toml:"persistence_backend"`
}

// Default returns the engine's built-in defaults, used whenever a field is
// left unset (zero) after decoding.
func Default() Config {
	return Config{
		Throughput:         32,
		MaxCredit:          256,
		LowWatermark:       32,
		ListenAddr:         ":50051",
		TransportBackend:   "grpc",
		PersistenceBackend: "wal",
	}
}

// Load decodes path into a Config, filling in Default() for any field the
// file leaves at its zero value.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config: %s has unrecognized keys: %v", path, undecoded)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// Save encodes cfg to path in TOML form, e.g. to materialize Default() on
// first run.
func Save(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Throughput == 0 {
		c.Throughput = d.Throughput
	}
	if c.MaxCredit == 0 {
		c.MaxCredit = d.MaxCredit
	}
	if c.LowWatermark == 0 {
		c.LowWatermark = d.LowWatermark
	}
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.TransportBackend == "" {
		c.TransportBackend = d.TransportBackend
	}
	if c.PersistenceBackend == "" {
		c.PersistenceBackend = d.PersistenceBackend
	}
}

// Watcher hot-reloads path on every write, pushing successfully decoded
// configs onto Changes. Decode failures (a half-written file, a typo) are
// reported on Errors instead of being pushed, so a bad edit never displaces
// the last good config.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	Changes chan Config
	Errors  chan error
	done    chan struct{}
}

// Watch starts watching path for writes. Call Close when done.
func Watch(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w := &Watcher{
		path:    path,
		fsw:     fsw,
		Changes: make(chan Config, 1),
		Errors:  make(chan error, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				select {
				case w.Errors <- err:
				default:
				}
				continue
			}
			select {
			case w.Changes <- cfg:
			default:
				// Drop the oldest unread change rather than block the
				// watch loop; Reconfigure only ever wants the latest.
				select {
				case <-w.Changes:
				default:
				}
				w.Changes <- cfg
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watch loop.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
