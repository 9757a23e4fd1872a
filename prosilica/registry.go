package prosilica

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/areaDetector/ADProsilica/pvapi"
)

// Registry owns the Detectors of an application, keyed by a caller-chosen name
type Registry struct {
	mu   sync.Mutex
	gw   pvapi.Gateway
	base Config
	dets map[string]*Detector
}

// NewRegistry returns an empty registry.  base supplies every Config field
// except UniqueID.
func NewRegistry(gw pvapi.Gateway, base Config) *Registry {
	return &Registry{gw: gw, base: base, dets: make(map[string]*Detector)}
}

// Create makes a Detector for the camera with uniqueID and registers it under name.
// Each configure func may adjust the Config before the Detector is made.
// The Detector is not connected.
func (r *Registry) Create(name string, uniqueID uint32, configure ...func(*Config)) (*Detector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.dets[name]; ok {
		return nil, fmt.Errorf("detector %q already exists", name)
	}
	cfg := r.base
	cfg.UniqueID = uniqueID
	if cfg.Logger != nil {
		cfg.Logger = cfg.Logger.Named(name)
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	d := New(r.gw, cfg)
	r.dets[name] = d
	return d, nil
}

// Get looks up a Detector
func (r *Registry) Get(name string) (*Detector, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dets[name]
	return d, ok
}

// Destroy closes a Detector and removes it
func (r *Registry) Destroy(name string) error {
	r.mu.Lock()
	d, ok := r.dets[name]
	delete(r.dets, name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("no detector %q", name)
	}
	return d.Close()
}

// Names lists the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.dets))
	for k := range r.dets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Close destroys every Detector
func (r *Registry) Close() error {
	var err error
	for _, name := range r.Names() {
		err = multierr.Append(err, r.Destroy(name))
	}
	return err
}
