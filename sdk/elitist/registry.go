package elitist

import (
	"fmt"

	"github.com/zintix-labs/shufflelab/dto"
	"github.com/zintix-labs/shufflelab/errs"
	"github.com/zintix-labs/shufflelab/profile"
	"github.com/zintix-labs/shufflelab/sdk/buf"
)

// Transform is the weight transform contract.
// Implementations should be fast and allocation-free on the hot path.
//
// Weights must fill and return a slice of length n where index i holds the
// sampling weight of the item originally ranked i. dst is a reusable buffer
// owned by the engine; implementations should write into it (growing only
// when the capacity is too small) and must not retain it.
//
// Contract:
//   - every weight must be finite and non-negative (the samplers panic on
//     NaN or negative values, treating them as programming errors)
//   - inequality is already validated by the caller: finite and >= 0
//
// NOTE: FeedProfile is treated as read-only after Init. If you intentionally
// mutate settings, you are responsible for correctness and concurrency safety.
type Transform interface {
	Weights(dst []float64, n int, inequality float64) []float64
}

// UniformAtZero is an optional capability: transforms whose weights collapse
// to a constant at inequality == 0 can report it so the engine may take the
// Fisher-Yates fast path and skip the weight computation entirely.
type UniformAtZero interface {
	UniformAtZero() bool
}

// Extender is an optional capability: transforms that expose per-shuffle
// diagnostics return their ExtendResult here. The engine attaches it to the
// result buffer so the DTO layer can snapshot it.
type Extender interface {
	Extend() buf.ExtendResult
}

// TransformBuilder builds a Transform bound to a specific *Engine
// (per-feed instance). It is invoked during engine initialization.
type TransformBuilder func(e *Engine) (Transform, error)

// TransformRegister registers:
//  1. the transform builder for tkey
//  2. the DTO renderer for the extend-result type T (must match the transform output)
//
// This is intentionally a free function (not a method) because methods cannot be generic.
func TransformRegister[T buf.ExtendResult](tkey profile.TransformKey, builder TransformBuilder, reg *TransformRegistry) error {
	// 1) register builder
	if err := reg.Register(tkey, builder); err != nil {
		return err
	}

	// 2) register extend result renderer
	dto.RegisterExtendRender[T](tkey)
	return nil
}

type TransformRegistry struct {
	builders map[profile.TransformKey]TransformBuilder
}

func NewTransformRegistry() *TransformRegistry {
	return &TransformRegistry{
		builders: make(map[profile.TransformKey]TransformBuilder, 16),
	}
}

func (r *TransformRegistry) Register(tkey profile.TransformKey, b TransformBuilder) error {
	if _, ok := r.builders[tkey]; ok {
		return errs.NewFatal("duplicate transform builder")
	}
	r.builders[tkey] = b
	return nil
}

func (r *TransformRegistry) Build(tkey profile.TransformKey, e *Engine) (Transform, error) {
	b, ok := r.builders[tkey]
	if !ok {
		return nil, errs.NewFatal(fmt.Sprintf("transform is not exist: %s", tkey))
	}
	return b(e)
}

func (r *TransformRegistry) IsExist(tkey profile.TransformKey) bool {
	_, ok := r.builders[tkey]
	return ok
}

// MergeTransformRegistry merges multiple registries into a new one.
//
// Because function values are not comparable in Go (except to nil), duplicate keys are treated
// as an error unconditionally. This keeps behavior deterministic and avoids "last one wins" surprises.
func MergeTransformRegistry(regs ...*TransformRegistry) (*TransformRegistry, error) {
	tr := NewTransformRegistry()

	// Track where a key first came from to produce a useful error message.
	origin := make(map[profile.TransformKey]int, 16)

	for i, r := range regs {
		if r == nil {
			continue
		}
		for tkey, builder := range r.builders {
			if _, ok := tr.builders[tkey]; ok {
				prev := origin[tkey]
				return nil, errs.NewFatal(fmt.Sprintf("duplicate transform key %s (registry #%d and #%d)", tkey, prev, i))
			}
			tr.builders[tkey] = builder
			origin[tkey] = i
		}
	}

	return tr, nil
}
