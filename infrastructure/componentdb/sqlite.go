package componentdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/ahrav/go-thermofom/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS components (
	name                 TEXT PRIMARY KEY,
	cas                  TEXT NOT NULL DEFAULT '',
	molar_mass           REAL NOT NULL,
	density              REAL NOT NULL,
	viscosity            REAL NOT NULL,
	thermal_conductivity REAL NOT NULL,
	heat_capacity        REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS component_aliases (
	component TEXT NOT NULL REFERENCES components(name) ON DELETE CASCADE,
	alias     TEXT NOT NULL,
	position  INTEGER NOT NULL,
	PRIMARY KEY (component, alias)
);`

const (
	metaReferenceTemperature = "reference_temperature_k"
	metaReferencePressure    = "reference_pressure_pa"
)

// OpenSQLite loads a database previously written by WriteSQLite.
func OpenSQLite(ctx context.Context, path string) (*Database, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat sqlite database: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = conn.Close() }()

	reference, err := readReferenceState(ctx, conn)
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `SELECT name, cas, molar_mass, density, viscosity,
		thermal_conductivity, heat_capacity FROM components ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select components: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var components []Component
	positions := make(map[string]int)
	for rows.Next() {
		var c Component
		if err := rows.Scan(&c.Name, &c.CAS, &c.MolarMass, &c.Density, &c.Viscosity,
			&c.ThermalConductivity, &c.HeatCapacity); err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		positions[c.Name] = len(components)
		components = append(components, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate components: %w", err)
	}

	aliasRows, err := conn.QueryContext(ctx,
		`SELECT component, alias FROM component_aliases ORDER BY component, position`)
	if err != nil {
		return nil, fmt.Errorf("select aliases: %w", err)
	}
	defer func() { _ = aliasRows.Close() }()

	for aliasRows.Next() {
		var component, alias string
		if err := aliasRows.Scan(&component, &alias); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		i, ok := positions[component]
		if !ok {
			return nil, fmt.Errorf("alias %q references missing component %q", alias, component)
		}
		components[i].Aliases = append(components[i].Aliases, alias)
	}
	if err := aliasRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aliases: %w", err)
	}

	return New(reference, components)
}

func readReferenceState(ctx context.Context, conn *sql.DB) (domain.StateCondition, error) {
	read := func(key string) (float64, error) {
		var raw string
		err := conn.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("metadata %q missing", key)
		}
		if err != nil {
			return 0, fmt.Errorf("select metadata %q: %w", key, err)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("metadata %q: %w", key, err)
		}
		return v, nil
	}

	t, err := read(metaReferenceTemperature)
	if err != nil {
		return domain.StateCondition{}, err
	}
	p, err := read(metaReferencePressure)
	if err != nil {
		return domain.StateCondition{}, err
	}
	return domain.StateCondition{TemperatureK: t, PressurePa: p}, nil
}

// WriteSQLite stores db at path, replacing any components already there.
// The whole write happens in one transaction.
func WriteSQLite(ctx context.Context, path string, db *Database) (retErr error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create dirs: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM component_aliases`, `DELETE FROM components`, `DELETE FROM metadata`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear tables: %w", err)
		}
	}

	meta := map[string]float64{
		metaReferenceTemperature: db.reference.TemperatureK,
		metaReferencePressure:    db.reference.PressurePa,
	}
	for key, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`,
			key, strconv.FormatFloat(v, 'g', -1, 64)); err != nil {
			return fmt.Errorf("insert metadata %q: %w", key, err)
		}
	}

	for _, c := range db.Components() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO components (name, cas, molar_mass, density,
			viscosity, thermal_conductivity, heat_capacity) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Name, c.CAS, c.MolarMass, c.Density, c.Viscosity, c.ThermalConductivity, c.HeatCapacity); err != nil {
			return fmt.Errorf("insert component %q: %w", c.Name, err)
		}
		for pos, alias := range c.Aliases {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO component_aliases (component, alias, position) VALUES (?, ?, ?)`,
				c.Name, alias, pos); err != nil {
				return fmt.Errorf("insert alias %q of %q: %w", alias, c.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
