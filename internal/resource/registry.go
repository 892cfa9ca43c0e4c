package resource

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oshokin/sensor-node/internal/domain/alarm"
)

var (
	// ErrNotFound is returned when no resource matches a name or path.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("resource already registered")
)

// Registry maps resource names and URI paths to resources.
// Registration happens at start-up; lookups are safe for concurrent use.
type Registry struct {
	// prefix is prepended to every name to form the URI path.
	prefix string
	// byName indexes resources by name.
	byName map[string]Resource
	// order keeps registration order for listings.
	order []string
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry. Paths are "<prefix>/<name>".
func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix: strings.Trim(prefix, "/"),
		byName: make(map[string]Resource),
	}
}

// Register adds a resource.
func (r *Registry) Register(res Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[res.Name()]; ok {
		return fmt.Errorf("%s: %w", res.Name(), ErrDuplicate)
	}

	r.byName[res.Name()] = res
	r.order = append(r.order, res.Name())

	return nil
}

// Path returns the URI path of a name, without a leading slash.
func (r *Registry) Path(name string) string {
	if r.prefix == "" {
		return name
	}

	return r.prefix + "/" + name
}

// Lookup resolves a bare name or a URI path, with or without a leading slash.
func (r *Registry) Lookup(nameOrPath string) (Resource, error) {
	name := strings.Trim(nameOrPath, "/")
	if r.prefix != "" {
		name = strings.TrimPrefix(name, r.prefix+"/")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", nameOrPath, ErrNotFound)
	}

	return res, nil
}

// Resources returns all resources in registration order.
func (r *Registry) Resources() []Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Resource, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.byName[name])
	}

	return list
}

// Evaluators returns the evaluators of all alarm resources.
func (r *Registry) Evaluators() []*alarm.Evaluator {
	var evaluators []*alarm.Evaluator

	for _, res := range r.Resources() {
		if a, ok := res.(*Alarm); ok {
			evaluators = append(evaluators, a.Evaluator())
		}
	}

	return evaluators
}

// LinkFormat renders the CoRE link-format listing of every resource.
func (r *Registry) LinkFormat() string {
	var b strings.Builder

	for i, res := range r.Resources() {
		if i > 0 {
			b.WriteByte(',')
		}

		fmt.Fprintf(&b, "</%s>;title=%q", r.Path(res.Name()), res.Title())

		if res.Observable() {
			b.WriteString(";obs")
		}
	}

	return b.String()
}
