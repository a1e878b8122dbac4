package core

import (
	"fmt"

	"github.com/edwinsyarief/lazyecs"
	"github.com/signalsfoundry/worldsim/model"
)

// Populate bulk-inserts one entity per sample of a generated field and lets
// init attach the initial component set (including freshly wired value-graph
// nodes) to each. It must run before the orchestrator starts or from code
// already executing on the owning loop; it mutates the store directly.
func Populate(l *Loop, count int, init func(w *lazyecs.World, e lazyecs.Entity, i int)) []lazyecs.Entity {
	entities := l.World.CreateEntities(count)
	if init != nil {
		for i, e := range entities {
			init(l.World, e, i)
		}
	}
	return entities
}

// PopulateField inserts one entity per sample of the field, after
// validating it, and then attaches the collaborator-computed adjacency.
func PopulateField(l *Loop, f *model.Field, init func(w *lazyecs.World, e lazyecs.Entity, i int)) ([]lazyecs.Entity, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("populate loop %q: %w", l.name, err)
	}
	entities := Populate(l, f.Len(), init)
	if err := AttachAdjacency(l, entities, f.Neighbors); err != nil {
		return nil, err
	}
	return entities, nil
}

// AttachAdjacency stores precomputed spatial adjacency on every entity as
// references to its neighbour entities. Adjacency is computed by the
// world-generation collaborator; the core only records the entity links.
func AttachAdjacency(l *Loop, entities []lazyecs.Entity, neighbors [][]int) error {
	if neighbors == nil {
		return nil
	}
	if len(neighbors) != len(entities) {
		return fmt.Errorf("adjacency rows (%d) do not match entity count (%d)", len(neighbors), len(entities))
	}
	for i, e := range entities {
		refs := make([]lazyecs.Entity, 0, len(neighbors[i]))
		for _, j := range neighbors[i] {
			if j < 0 || j >= len(entities) {
				return fmt.Errorf("adjacency of sample %d references sample %d, out of range", i, j)
			}
			refs = append(refs, entities[j])
		}
		if !lazyecs.SetComponent(l.World, e, model.Adjacency{Entities: refs}) {
			return fmt.Errorf("attach adjacency: entity %d is gone", e.ID)
		}
	}
	return nil
}
