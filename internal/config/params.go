package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ruralpay/escrow/internal/models"
)

// Parameter keys read by the offer lifecycle.
const (
	ParamBuyerCancelMinAge   = "buyer.cancel.minage"
	ParamArbitrationCooldown = "arbitration.cooldown"
)

var (
	ErrParamNotFound = errors.New("parameter has not been initialized")
	ErrParamType     = errors.New("parameter has a different type")
)

// Param is one typed entry of the parameter store. Value holds one of
// uint64, int64, float64, string or models.Asset.
type Param struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// Params is the typed key/value store for tunables shared by the engine.
type Params struct {
	mu     sync.RWMutex
	values map[string]Param
}

func NewParams() *Params {
	return &Params{values: make(map[string]Param)}
}

// DefaultParams seeds the lifecycle timings from the process config.
func DefaultParams(cfg *Config) *Params {
	p := NewParams()
	p.SetParam(ParamBuyerCancelMinAge, uint64(cfg.CancelAge/time.Second), "seconds a buy offer must exist before its buyer can cancel it")
	p.SetParam(ParamArbitrationCooldown, uint64(cfg.Cooldown/time.Second), "seconds after payment before arbitration can be requested")
	return p
}

// SetParam inserts or replaces key. A key keeps the type it was first set
// with until Reset; an empty description keeps the old one.
func (p *Params) SetParam(key string, value any, description string) error {
	switch value.(type) {
	case uint64, int64, float64, string, models.Asset:
	default:
		return fmt.Errorf("%w: %s does not accept %T", ErrParamType, key, value)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry := Param{Key: key, Value: value, Description: description}
	if old, ok := p.values[key]; ok {
		if was, now := fmt.Sprintf("%T", old.Value), fmt.Sprintf("%T", value); was != now {
			return fmt.Errorf("%w: %s holds %s, got %s", ErrParamType, key, was, now)
		}
		if description == "" {
			entry.Description = old.Description
		}
	}
	p.values[key] = entry
	return nil
}

func (p *Params) get(key string) (any, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParamNotFound, key)
	}
	return entry.Value, nil
}

func getAs[T any](p *Params, key string) (T, error) {
	var zero T
	v, err := p.get(key)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T", ErrParamType, key, v)
	}
	return t, nil
}

func (p *Params) Uint64(key string) (uint64, error) { return getAs[uint64](p, key) }
func (p *Params) Int64(key string) (int64, error) { return getAs[int64](p, key) }
func (p *Params) Float64(key string) (float64, error) { return getAs[float64](p, key) }
func (p *Params) String(key string) (string, error) { return getAs[string](p, key) }
func (p *Params) Asset(key string) (models.Asset, error) { return getAs[models.Asset](p, key) }

// Duration reads a uint64 parameter holding seconds.
func (p *Params) Duration(key string) (time.Duration, error) {
	secs, err := p.Uint64(key)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// List returns every parameter ordered by key.
func (p *Params) List() []Param {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Param, 0, len(p.values))
	for _, v := range p.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Reset drops every parameter.
func (p *Params) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = make(map[string]Param)
}
