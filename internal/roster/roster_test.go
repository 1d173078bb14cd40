package roster

import (
	"os"
	"path/filepath"
	"testing"
)

var squad = []Player{
	{ID: "p1", Name: "Arjun Patel", Role: RoleFastBowler},
	{ID: "p2", Name: "Dev Sharma", Role: RoleBatter},
	{ID: "p3", Name: "Dev Sharma Jr", Role: RoleSpinner},
	{ID: "p4", Name: "Rory Finch", Role: RoleAllRounder, Unfit: true},
	{ID: "p5", Name: "Sam Iyer", Role: RoleWicketkeeper},
}

func TestEligibility(t *testing.T) {
	r := New(squad)

	cases := []struct {
		id      string
		mode    TeamMode
		want    bool
	}{
		{"p1", TeamModeBowling, true},
		{"p2", TeamModeBowling, false},
		{"p2", TeamModeBatting, true},
		{"p3", TeamModeBowling, true},
		{"p4", TeamModeBowling, false}, // unfit all-rounder
		{"p4", TeamModeBatting, false},
		{"p5", TeamModeBowling, false},
		{"p5", TeamModeBatting, true},
	}
	for _, tc := range cases {
		p, ok := r.ByID(tc.id)
		if !ok {
			t.Fatalf("player %s missing", tc.id)
		}
		if got := p.EligibleFor(tc.mode); got != tc.want {
			t.Errorf("%s eligible for %s = %v, want %v", tc.id, tc.mode, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	r := New(squad)

	if p, ok := r.Resolve("p3"); !ok || p.ID != "p3" {
		t.Errorf("resolve by id failed: %v %v", p, ok)
	}
	if p, ok := r.Resolve("dev sharma"); !ok || p.ID != "p2" {
		t.Errorf("resolve by exact name failed: %v %v", p, ok)
	}
	if p, ok := r.Resolve("bring back Arjun Patel for the death"); !ok || p.ID != "p1" {
		t.Errorf("resolve by mention failed: %v %v", p, ok)
	}
	if _, ok := r.Resolve("someone else entirely"); ok {
		t.Error("resolved a name not on the card")
	}
}

func TestFindMentionedPrefersLongestName(t *testing.T) {
	r := New(squad)
	p, ok := r.FindMentioned("dev sharma jr is beating the bat")
	if !ok || p.ID != "p3" {
		t.Errorf("got %v %v, want p3", p, ok)
	}
	p, ok = r.FindMentioned("promote dev sharma up the order")
	if !ok || p.ID != "p2" {
		t.Errorf("got %v %v, want p2", p, ok)
	}
}

func TestLoadFile(t *testing.T) {
	yaml := `
players:
  - id: p1
    name: Arjun Patel
    role: fast_bowler
  - id: p2
    name: Dev Sharma
    role: batter
    unfit: true
`
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("len = %d, want 2", r.Len())
	}
	p, ok := r.ByID("p2")
	if !ok || !p.Unfit {
		t.Errorf("unfit flag lost: %v %v", p, ok)
	}
}

func TestLoadFileRejectsBadRole(t *testing.T) {
	yaml := `
players:
  - id: p1
    name: Arjun Patel
    role: juggler
`
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for unknown role")
	}
}
