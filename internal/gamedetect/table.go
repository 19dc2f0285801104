package gamedetect

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed games.yaml
var defaultTable []byte

// Game is one entry of the known-game table.
type Game struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Processes []string `yaml:"processes" json:"processes"`
	Ports     []int    `yaml:"ports" json:"ports,omitempty"`
	Regions   []string `yaml:"regions" json:"regions,omitempty"`
}

// Table is the static game list. Order is significant: it is the order
// matches are reported in.
type Table struct {
	Games []Game `yaml:"games" json:"games"`
}

// DefaultTable returns the built-in table.
func DefaultTable() *Table {
	t, err := parseTable(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded game table: %v", err))
	}
	return t
}

// LoadTable reads a table from path, or returns the built-in one when path is empty.
func LoadTable(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read game table: %w", err)
	}
	t, err := parseTable(data)
	if err != nil {
		return nil, fmt.Errorf("game table %s: %w", path, err)
	}
	return t, nil
}

func parseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(t.Games))
	for i, g := range t.Games {
		if g.ID == "" {
			return nil, fmt.Errorf("games[%d]: missing id", i)
		}
		if seen[g.ID] {
			return nil, fmt.Errorf("games[%d]: duplicate id %q", i, g.ID)
		}
		seen[g.ID] = true
		if len(g.Processes) == 0 {
			return nil, fmt.Errorf("games[%d] %s: no process names", i, g.ID)
		}
		if g.Name == "" {
			t.Games[i].Name = g.ID
		}
	}
	return &t, nil
}

// Lookup returns the game with the given id.
func (t *Table) Lookup(id string) (Game, bool) {
	for _, g := range t.Games {
		if g.ID == id {
			return g, true
		}
	}
	return Game{}, false
}
