package roster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type rosterFile struct {
	Players []Player `yaml:"players"`
}

// LoadFile reads a roster from a YAML file.
func LoadFile(path string) (*Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster file: %w", err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parse roster file: %w", err)
	}
	if len(rf.Players) == 0 {
		return nil, fmt.Errorf("roster file %s lists no players", path)
	}

	seen := make(map[string]bool, len(rf.Players))
	for i, p := range rf.Players {
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("roster entry %d needs id and name", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate player id %s", p.ID)
		}
		seen[p.ID] = true
		switch p.Role {
		case RoleFastBowler, RoleSpinner, RoleAllRounder, RoleBatter, RoleWicketkeeper:
		default:
			return nil, fmt.Errorf("player %s has unknown role %q", p.ID, p.Role)
		}
	}
	return New(rf.Players), nil
}
