// Package schema versions the encoded form of stored items so embedded
// stores can upgrade old rows as they read them.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"bfdb/domain/core/entities"
)

// ItemVersion is the item encoding written by this release
const ItemVersion = 1

// Migration upgrades a payload from FromVersion to FromVersion+1
type Migration struct {
	FromVersion int
	Description string
	Up          func(data json.RawMessage) (json.RawMessage, error)
}

// envelope wraps every stored payload with its version
type envelope struct {
	SchemaVersion int             `json:"_schema_version"`
	Data          json.RawMessage `json:"data"`
}

// Evolution encodes items at its current version and upgrades older
// payloads through registered migrations
type Evolution struct {
	current    int
	migrations map[int]Migration
}

// NewEvolution creates an Evolution writing version current
func NewEvolution(current int, migrations ...Migration) (*Evolution, error) {
	if current < 1 {
		return nil, fmt.Errorf("schema version must be positive, got %d", current)
	}
	e := &Evolution{current: current, migrations: make(map[int]Migration)}
	for _, m := range migrations {
		if err := e.RegisterMigration(m); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// CurrentVersion returns the version Encode writes
func (e *Evolution) CurrentVersion() int {
	return e.current
}

// RegisterMigration adds a step to the upgrade chain
func (e *Evolution) RegisterMigration(m Migration) error {
	if m.FromVersion < 1 || m.FromVersion >= e.current {
		return fmt.Errorf("migration from v%d is outside 1..%d", m.FromVersion, e.current-1)
	}
	if m.Up == nil {
		return fmt.Errorf("migration from v%d has no Up function", m.FromVersion)
	}
	if _, exists := e.migrations[m.FromVersion]; exists {
		return fmt.Errorf("migration from v%d already registered", m.FromVersion)
	}
	e.migrations[m.FromVersion] = m
	return nil
}

// Steps lists the registered migrations in order
func (e *Evolution) Steps() []Migration {
	out := make([]Migration, 0, len(e.migrations))
	for _, m := range e.migrations {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FromVersion < out[j].FromVersion })
	return out
}

// Encode marshals item inside an envelope of the current version
func (e *Evolution) Encode(item entities.Item) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{SchemaVersion: e.current, Data: data})
}

// Decode unmarshals a payload of any known version. upgraded reports
// whether migrations ran, so callers may rewrite the row.
func (e *Evolution) Decode(raw []byte) (item entities.Item, upgraded bool, err error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return entities.Item{}, false, fmt.Errorf("decode envelope: %w", err)
	}
	if env.SchemaVersion < 1 || env.SchemaVersion > e.current {
		return entities.Item{}, false, fmt.Errorf("unsupported schema v%d (current v%d)", env.SchemaVersion, e.current)
	}

	data := env.Data
	for v := env.SchemaVersion; v < e.current; v++ {
		m, ok := e.migrations[v]
		if !ok {
			return entities.Item{}, false, fmt.Errorf("no migration from schema v%d", v)
		}
		if data, err = m.Up(data); err != nil {
			return entities.Item{}, false, fmt.Errorf("migrate v%d: %w", v, err)
		}
		upgraded = true
	}

	if err := json.Unmarshal(data, &item); err != nil {
		return entities.Item{}, false, fmt.Errorf("decode item: %w", err)
	}
	return item, upgraded, nil
}
