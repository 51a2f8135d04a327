// internal/adapter/storage/station_store.go

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"orcast/internal/domain/station"
)

// StationStore implements storage for hydrophone stations
type StationStore struct {
	db *pgxpool.Pool
}

// NewStationStore creates a new station store
func NewStationStore(db *pgxpool.Pool) *StationStore {
	return &StationStore{
		db: db,
	}
}

// EnsureSchema creates the stations table when missing
func (s *StationStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS hydrophone_stations (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			lat         DOUBLE PRECISION NOT NULL,
			lng         DOUBLE PRECISION NOT NULL,
			region      TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)
	`

	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("error creating stations table: %w", err)
	}
	return nil
}

// Seed inserts the given stations when the table is empty
func (s *StationStore) Seed(ctx context.Context, stations []station.HydrophoneStation) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM hydrophone_stations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting stations: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, st := range stations {
		batch.Queue(`
			INSERT INTO hydrophone_stations (id, name, lat, lng, region, description)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, st.ID, st.Name, st.Lat, st.Lng, st.Region, st.Description)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range stations {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("error seeding stations: %w", err)
		}
	}

	return len(stations), nil
}

// ListStations returns every stored station ordered by region and name
func (s *StationStore) ListStations(ctx context.Context) ([]station.HydrophoneStation, error) {
	query := `
		SELECT id, name, lat, lng, region, description
		FROM hydrophone_stations
		ORDER BY region, name
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying stations: %w", err)
	}
	defer rows.Close()

	var stations []station.HydrophoneStation
	for rows.Next() {
		var st station.HydrophoneStation
		if err := rows.Scan(&st.ID, &st.Name, &st.Lat, &st.Lng, &st.Region, &st.Description); err != nil {
			return nil, fmt.Errorf("error scanning station: %w", err)
		}
		stations = append(stations, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stations: %w", err)
	}

	return stations, nil
}
