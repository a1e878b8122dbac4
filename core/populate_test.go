package core

import (
	"strings"
	"testing"

	"github.com/edwinsyarief/lazyecs"
	"github.com/signalsfoundry/worldsim/model"
)

func testField(size int) *model.Field {
	n := size * size
	height := make([]float64, n)
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		height[i] = float64(i)
		// Right neighbour along each row.
		if (i+1)%size != 0 {
			neighbors[i] = []int{i + 1}
		}
	}
	return &model.Field{
		Size:      size,
		Layers:    map[string][]float64{"height": height},
		Neighbors: neighbors,
	}
}

func TestPopulateFieldInsertsOneEntityPerSample(t *testing.T) {
	model.RegisterComponents()
	l := newTestLoop(t, "world", 1)

	f := testField(4)
	entities, err := PopulateField(l, f, func(w *lazyecs.World, e lazyecs.Entity, i int) {
		lazyecs.SetComponent(w, e, model.Cell{Index: i})
	})
	if err != nil {
		t.Fatalf("PopulateField: %v", err)
	}
	if len(entities) != f.Len() {
		t.Fatalf("len(entities) = %d, want %d", len(entities), f.Len())
	}

	for i, e := range entities {
		cell, ok := lazyecs.GetComponent[model.Cell](l.World, e)
		if !ok {
			t.Fatalf("entity %d has no cell component", i)
		}
		if cell.Index != i {
			t.Fatalf("entity %d cell index = %d, want %d", i, cell.Index, i)
		}
	}
}

func TestPopulateFieldAttachesAdjacency(t *testing.T) {
	model.RegisterComponents()
	l := newTestLoop(t, "world", 1)

	entities, err := PopulateField(l, testField(3), nil)
	if err != nil {
		t.Fatalf("PopulateField: %v", err)
	}

	adj, ok := lazyecs.GetComponent[model.Adjacency](l.World, entities[0])
	if !ok {
		t.Fatal("sample 0 has no adjacency component")
	}
	if len(adj.Entities) != 1 || adj.Entities[0] != entities[1] {
		t.Fatalf("sample 0 neighbours = %v, want [entity 1]", adj.Entities)
	}

	// Last sample of a row has no right neighbour.
	adj, ok = lazyecs.GetComponent[model.Adjacency](l.World, entities[2])
	if !ok {
		t.Fatal("sample 2 has no adjacency component")
	}
	if len(adj.Entities) != 0 {
		t.Fatalf("sample 2 neighbours = %v, want none", adj.Entities)
	}
}

func TestPopulateFieldRejectsInvalidField(t *testing.T) {
	model.RegisterComponents()
	l := newTestLoop(t, "world", 1)

	f := testField(3)
	f.Layers["height"] = f.Layers["height"][:4]
	if _, err := PopulateField(l, f, nil); err == nil {
		t.Fatal("short layer accepted")
	}

	f = testField(3)
	f.Neighbors[0] = []int{99}
	_, err := PopulateField(l, f, nil)
	if err == nil {
		t.Fatal("out-of-range neighbour accepted")
	}
	if !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("error = %v, want out-of-range diagnostic", err)
	}
}

func TestAttachAdjacencyRowCountMismatch(t *testing.T) {
	model.RegisterComponents()
	l := newTestLoop(t, "world", 1)

	entities := Populate(l, 3, nil)
	if err := AttachAdjacency(l, entities, [][]int{{1}}); err == nil {
		t.Fatal("mismatched adjacency rows accepted")
	}
	if err := AttachAdjacency(l, entities, nil); err != nil {
		t.Fatalf("nil adjacency should be a no-op, got %v", err)
	}
}
