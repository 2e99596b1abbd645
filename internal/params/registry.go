package params

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pharmaguard/pgx-server/internal/config"
)

// ParameterSet bundles every tunable scoring parameter.
type ParameterSet struct {
	Scoring    config.ScoringConfig    `json:"scoring" mapstructure:"scoring"`
	Confidence config.ConfidenceConfig `json:"confidence" mapstructure:"confidence"`
	Learning   config.LearningConfig   `json:"learning" mapstructure:"learning"`
}

// Snapshot is one tagged parameter set.
type Snapshot struct {
	Version     string       `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	Description string       `json:"description"`
	Params      ParameterSet `json:"params"`
}

// Change is one parameter difference between two snapshots.
type Change struct {
	Field string  `json:"field"`
	From  float64 `json:"from"`
	To    float64 `json:"to"`
}

// Registry holds the tagged snapshots and the active version.
//
// New tags always bump from the highest existing version, so a rollback
// never causes a version collision on the next tag.
type Registry struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	order     []string // chronological tag order
	active    string
	logger    *logrus.Logger
}

func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		snapshots: make(map[string]*Snapshot),
		logger:    logger,
	}
}

// Tag records a new snapshot. The first tag is always 1.0.0; later tags
// bump the highest existing version at the requested level. The new
// snapshot becomes active.
func (r *Registry) Tag(level BumpLevel, description string, params ParameterSet) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := version{1, 0, 0}
	if len(r.order) > 0 {
		latest, err := r.latestVersion()
		if err != nil {
			return nil, err
		}
		next = latest.bump(level)
	}

	snapshot := &Snapshot{
		Version:     next.String(),
		CreatedAt:   time.Now().UTC(),
		Description: description,
		Params:      params,
	}
	r.snapshots[snapshot.Version] = snapshot
	r.order = append(r.order, snapshot.Version)
	r.active = snapshot.Version

	r.logger.WithFields(logrus.Fields{
		"version":     snapshot.Version,
		"description": description,
	}).Info("Parameter snapshot tagged")

	return snapshot, nil
}

func (r *Registry) latestVersion() (version, error) {
	var latest version
	for _, tag := range r.order {
		v, err := parseVersion(tag)
		if err != nil {
			return version{}, err
		}
		if latest.less(v) {
			latest = v
		}
	}
	return latest, nil
}

// Current returns the active snapshot, or nil when nothing is tagged.
func (r *Registry) Current() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshots[r.active]
}

// Get returns a snapshot by version.
func (r *Registry) Get(tag string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot, ok := r.snapshots[tag]
	if !ok {
		return nil, fmt.Errorf("parameter version %s not found", tag)
	}
	return snapshot, nil
}

// List returns all snapshots in chronological tag order.
func (r *Registry) List() []*Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Snapshot, 0, len(r.order))
	for _, tag := range r.order {
		result = append(result, r.snapshots[tag])
	}
	return result
}

// Rollback makes an earlier snapshot active again without discarding any
// history.
func (r *Registry) Rollback(tag string) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot, ok := r.snapshots[tag]
	if !ok {
		return nil, fmt.Errorf("parameter version %s not found", tag)
	}
	previous := r.active
	r.active = tag

	r.logger.WithFields(logrus.Fields{
		"from": previous,
		"to":   tag,
	}).Warn("Parameter snapshot rolled back")

	return snapshot, nil
}

// Diff lists the parameters that changed between two snapshots, fields
// named by their config keys, sorted.
func (r *Registry) Diff(fromTag, toTag string) ([]Change, error) {
	from, err := r.Get(fromTag)
	if err != nil {
		return nil, err
	}
	to, err := r.Get(toTag)
	if err != nil {
		return nil, err
	}

	fromFlat := flatten(from.Params)
	toFlat := flatten(to.Params)

	var changes []Change
	for field, fromValue := range fromFlat {
		if toValue := toFlat[field]; toValue != fromValue {
			changes = append(changes, Change{Field: field, From: fromValue, To: toValue})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes, nil
}

// flatten walks the parameter structs into dotted config keys.
func flatten(params ParameterSet) map[string]float64 {
	out := make(map[string]float64)
	flattenValue("", reflect.ValueOf(params), out)
	return out
}

func flattenValue(prefix string, v reflect.Value, out map[string]float64) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("mapstructure")
		if comma := strings.Index(tag, ","); comma >= 0 {
			tag = tag[:comma]
		}
		if tag == "" {
			tag = strings.ToLower(t.Field(i).Name)
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		field := v.Field(i)
		switch field.Kind() {
		case reflect.Struct:
			flattenValue(key, field, out)
		case reflect.Float64:
			out[key] = field.Float()
		case reflect.Int, reflect.Int64:
			out[key] = float64(field.Int())
		}
	}
}

// registryExport is the on-disk form.
type registryExport struct {
	Active    string      `json:"active"`
	Order     []string    `json:"order"`
	Snapshots []*Snapshot `json:"snapshots"`
}

// SaveFile writes the full registry as JSON.
func (r *Registry) SaveFile(path string) error {
	r.mu.RLock()
	export := registryExport{
		Active:    r.active,
		Order:     append([]string(nil), r.order...),
		Snapshots: make([]*Snapshot, 0, len(r.order)),
	}
	for _, tag := range r.order {
		export.Snapshots = append(export.Snapshots, r.snapshots[tag])
	}
	r.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadFile restores a registry saved with SaveFile.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read parameter registry: %w", err)
	}
	var export registryExport
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("failed to parse parameter registry: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = make(map[string]*Snapshot, len(export.Snapshots))
	for _, snapshot := range export.Snapshots {
		r.snapshots[snapshot.Version] = snapshot
	}
	r.order = export.Order
	r.active = export.Active
	return nil
}
