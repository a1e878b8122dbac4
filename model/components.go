package model

import "github.com/edwinsyarief/lazyecs"

// Cell ties an entity back to its sample index in the originating field.
type Cell struct {
	Index int
}

// Adjacency stores a sample's spatial neighbours as entity references,
// attached after bulk insertion once all entities exist.
type Adjacency struct {
	Entities []lazyecs.Entity
}

// RegisterComponents registers the core's component types with the store's
// global registry. Call once at startup before creating worlds.
func RegisterComponents() {
	lazyecs.RegisterComponent[Cell]()
	lazyecs.RegisterComponent[Adjacency]()
}
