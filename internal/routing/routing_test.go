package routing

import (
	"errors"
	"reflect"
	"testing"
)

func TestLookup(t *testing.T) {
	table, err := NewTable([]Route{
		{Source: -1002409298826, Targets: []int64{4537474080}},
		{Source: -1002383817881, Targets: []int64{7753411011, 7497120111}},
	}, DuplicateReject)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	if got := table.Lookup(-1002383817881); !reflect.DeepEqual(got, []int64{7753411011, 7497120111}) {
		t.Fatalf("got %v, want ordered targets", got)
	}
	if got := table.Lookup(42); got != nil {
		t.Fatalf("expected nil for unknown source, got %v", got)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	table, _ := NewTable([]Route{{Source: 1, Targets: []int64{10, 20}}}, DuplicateReject)
	got := table.Lookup(1)
	got[0] = 99
	if again := table.Lookup(1); again[0] != 10 {
		t.Fatalf("table mutated through returned slice: %v", again)
	}
}

func TestDuplicateReject(t *testing.T) {
	_, err := NewTable([]Route{
		{Source: -1, Targets: []int64{7753411011}},
		{Source: -1, Targets: []int64{7497120111}},
	}, DuplicateReject)

	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if dup.Source != -1 {
		t.Fatalf("expected source -1, got %d", dup.Source)
	}
}

func TestDuplicateLastWins(t *testing.T) {
	table, err := NewTable([]Route{
		{Source: -1, Targets: []int64{7753411011}},
		{Source: -2, Targets: []int64{1}},
		{Source: -1, Targets: []int64{7497120111}},
	}, DuplicateLastWins)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	if got := table.Lookup(-1); !reflect.DeepEqual(got, []int64{7497120111}) {
		t.Fatalf("got %v, want last declaration", got)
	}
	if n := len(table.Routes()); n != 2 {
		t.Fatalf("expected 2 routes, got %d", n)
	}
}

func TestEmptyTargetsRejected(t *testing.T) {
	if _, err := NewTable([]Route{{Source: 1}}, DuplicateLastWins); err == nil {
		t.Fatal("expected error for route without targets")
	}
}

func TestChats(t *testing.T) {
	table, _ := NewTable([]Route{
		{Source: -1, Targets: []int64{10, 20}},
		{Source: -2, Targets: []int64{20, 30}},
	}, DuplicateReject)
	want := []int64{-1, 10, 20, -2, 30}
	if got := table.Chats(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseDuplicatePolicy(t *testing.T) {
	if p, ok := ParseDuplicatePolicy(""); !ok || p != DuplicateReject {
		t.Fatal("empty should parse as reject")
	}
	if p, ok := ParseDuplicatePolicy("last_wins"); !ok || p != DuplicateLastWins {
		t.Fatal("last_wins should parse")
	}
	if _, ok := ParseDuplicatePolicy("first_wins"); ok {
		t.Fatal("unknown policy should not parse")
	}
}
