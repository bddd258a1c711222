package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// ErrPresetNotFound reports a lookup or delete for a name with no
// stored row.
var ErrPresetNotFound = errors.New("preset not found")

// TokenSource mints preset row IDs.
type TokenSource interface {
	Generate() string
}

// uuidSource is the default TokenSource. UUIDv7 keeps id order equal
// to creation order.
type uuidSource struct{}

func (uuidSource) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Preset is a named home parameter vector with storage metadata.
type Preset struct {
	ID        string
	Name      string
	Params    param.Vector
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SavePreset stores params under name, creating the preset or
// replacing its vector when the name already exists. The stored row
// is read back and returned; an update keeps the original id and
// created_at.
//
// Names are NFC-normalized before the write. An empty name is an
// error. The vector is serialized to canonical JSON per RFC 8785 so
// identical vectors store identical bytes.
func (s *Store) SavePreset(ctx context.Context, name string, params param.Vector) (Preset, error) {
	name = param.NormalizeID(name)
	if name == "" {
		return Preset{}, fmt.Errorf("save preset: name is empty")
	}

	paramsJSON, err := marshalParams(params)
	if err != nil {
		return Preset{}, fmt.Errorf("save preset %q: %w", name, err)
	}

	now := s.now().UnixMilli()

	// Insert-then-read-back in one transaction so the returned row is
	// exactly what later loads will see.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Preset{}, fmt.Errorf("save preset %q: begin tx: %w", name, err)
	}
	defer tx.Rollback() // No-op if committed

	// ON CONFLICT(name) keeps id and created_at from the first insert.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO presets
		(id, name, params, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			params = excluded.params,
			updated_at = excluded.updated_at
	`,
		s.tokens.Generate(),
		name,
		paramsJSON,
		now,
		now,
	)
	if err != nil {
		return Preset{}, fmt.Errorf("save preset %q: %w", name, err)
	}

	saved, err := scanPresetRow(tx.QueryRowContext(ctx, `
		SELECT id, name, params, created_at, updated_at
		FROM presets
		WHERE name = ?
	`, name))
	if err != nil {
		return Preset{}, fmt.Errorf("save preset %q: read back: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return Preset{}, fmt.Errorf("save preset %q: commit: %w", name, err)
	}

	return saved, nil
}

// LoadPreset retrieves a preset by name.
// Returns ErrPresetNotFound if no preset has that name.
func (s *Store) LoadPreset(ctx context.Context, name string) (Preset, error) {
	name = param.NormalizeID(name)

	p, err := scanPresetRow(s.db.QueryRowContext(ctx, `
		SELECT id, name, params, created_at, updated_at
		FROM presets
		WHERE name = ?
	`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Preset{}, fmt.Errorf("load preset %q: %w", name, ErrPresetNotFound)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("load preset %q: %w", name, err)
	}

	return p, nil
}

// ListPresets returns all presets ordered by name.
//
// Returns an empty slice (not nil) when the library is empty.
func (s *Store) ListPresets(ctx context.Context) ([]Preset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, params, created_at, updated_at
		FROM presets
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query presets: %w", err)
	}
	defer rows.Close()

	var presets []Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate presets: %w", err)
	}

	// Return empty slice instead of nil
	if presets == nil {
		presets = []Preset{}
	}

	return presets, nil
}

// DeletePreset removes a preset by name.
// Returns ErrPresetNotFound if no preset has that name.
func (s *Store) DeletePreset(ctx context.Context, name string) error {
	name = param.NormalizeID(name)

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM presets WHERE name = ?
	`, name)
	if err != nil {
		return fmt.Errorf("delete preset %q: %w", name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete preset %q: rows affected: %w", name, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete preset %q: %w", name, ErrPresetNotFound)
	}

	return nil
}

// marshalParams converts a vector to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalParams(params param.Vector) (string, error) {
	data, err := param.MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

// unmarshalParams parses canonical JSON TEXT back into a vector.
func unmarshalParams(data string) (param.Vector, error) {
	var v param.Vector
	if data == "" {
		return v, nil
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return param.Vector{}, fmt.Errorf("unmarshal params: %w", err)
	}
	return v, nil
}

// scanPreset reads one preset from a rows cursor.
func scanPreset(rows *sql.Rows) (Preset, error) {
	var p Preset
	var paramsJSON string
	var createdAt, updatedAt int64

	if err := rows.Scan(&p.ID, &p.Name, &paramsJSON, &createdAt, &updatedAt); err != nil {
		return Preset{}, fmt.Errorf("scan preset: %w", err)
	}

	params, err := unmarshalParams(paramsJSON)
	if err != nil {
		return Preset{}, fmt.Errorf("scan preset %q: %w", p.Name, err)
	}
	p.Params = params
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return p, nil
}

// scanPresetRow reads one preset from a single-row query.
func scanPresetRow(row *sql.Row) (Preset, error) {
	var p Preset
	var paramsJSON string
	var createdAt, updatedAt int64

	if err := row.Scan(&p.ID, &p.Name, &paramsJSON, &createdAt, &updatedAt); err != nil {
		return Preset{}, err
	}

	params, err := unmarshalParams(paramsJSON)
	if err != nil {
		return Preset{}, fmt.Errorf("scan preset %q: %w", p.Name, err)
	}
	p.Params = params
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return p, nil
}
