package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteRepository persists the last setup and LED state of each device.
//
// Only the latest value per device is stored; there is no history.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// SaveSetup upserts the setup of id.
func (r *SQLiteRepository) SaveSetup(ctx context.Context, id Identity, cfg SetupConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling setup: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO device_setups (device_id, setup, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET setup = excluded.setup, updated_at = excluded.updated_at`,
		string(id),
		string(data),
		r.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("upserting setup: %w", err)
	}
	return nil
}

// SaveLED upserts the LED state of id.
func (r *SQLiteRepository) SaveLED(ctx context.Context, id Identity, state LEDState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO led_states (device_id, color, intensity, delay, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
		   color = excluded.color,
		   intensity = excluded.intensity,
		   delay = excluded.delay,
		   updated_at = excluded.updated_at`,
		string(id),
		state.Color,
		state.Intensity,
		state.Delay,
		r.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("upserting led state: %w", err)
	}
	return nil
}

// LoadSetups returns every persisted setup keyed by device.
func (r *SQLiteRepository) LoadSetups(ctx context.Context) (map[Identity]SetupConfig, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT device_id, setup FROM device_setups`)
	if err != nil {
		return nil, fmt.Errorf("querying setups: %w", err)
	}
	defer rows.Close()

	out := make(map[Identity]SetupConfig)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scanning setup: %w", err)
		}
		var cfg SetupConfig
		if err := json.Unmarshal([]byte(data), &cfg); err != nil {
			return nil, fmt.Errorf("unmarshalling setup for %s: %w", id, err)
		}
		out[Identity(id)] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating setups: %w", err)
	}
	return out, nil
}

// LoadLEDs returns every persisted LED state keyed by device.
func (r *SQLiteRepository) LoadLEDs(ctx context.Context) (map[Identity]LEDState, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT device_id, color, intensity, delay FROM led_states`)
	if err != nil {
		return nil, fmt.Errorf("querying led states: %w", err)
	}
	defer rows.Close()

	out := make(map[Identity]LEDState)
	for rows.Next() {
		var id string
		var state LEDState
		if err := rows.Scan(&id, &state.Color, &state.Intensity, &state.Delay); err != nil {
			return nil, fmt.Errorf("scanning led state: %w", err)
		}
		out[Identity(id)] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating led states: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}
