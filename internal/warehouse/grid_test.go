package warehouse

import "testing"

func TestNewGridExcludesPackout(t *testing.T) {
	g := NewGrid(25, 20)
	if len(g.Pool()) != 25*20-1 {
		t.Fatalf("expected pool size %d, got %d", 25*20-1, len(g.Pool()))
	}
	if _, ok := g.ItemByID("ITEM_A01R01"); ok {
		t.Fatal("packout cell must never be a pool item")
	}
}

func TestItemIDFormat(t *testing.T) {
	g := NewGrid(25, 20)
	item, ok := g.ItemByID("ITEM_A02R05")
	if !ok {
		t.Fatal("expected ITEM_A02R05 to exist in pool")
	}
	if item.Location != (Coordinate{Aisle: 2, Rack: 5}) {
		t.Fatalf("unexpected location for ITEM_A02R05: %+v", item.Location)
	}
}

func TestSnakeOracleAlternatesByAisleParity(t *testing.T) {
	var o SnakeOracle
	if !o.LeftToRight(1, Forward) {
		t.Fatal("odd aisle should traverse left-to-right forward")
	}
	if o.LeftToRight(2, Forward) {
		t.Fatal("even aisle should traverse right-to-left forward")
	}
	if o.LeftToRight(1, Forward) == o.LeftToRight(1, Reverse) {
		t.Fatal("reverse direction must invert the oracle's answer")
	}
}

func TestManhattanDistance(t *testing.T) {
	if got := ManhattanDistance(Coordinate{1, 1}, Coordinate{4, 5}); got != 7 {
		t.Fatalf("expected distance 7, got %d", got)
	}
}
