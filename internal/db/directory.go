package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scolarite/mailsync/internal/models"
)

// ErrUserNotFound is returned when a principal id has no directory row.
var ErrUserNotFound = errors.New("user not found in directory")

// DirectoryStore reads principals and groups from the directory tables.
// Queries return empty lists, never errors, for units with no members.
type DirectoryStore struct {
	pool *pgxpool.Pool
}

// NewDirectoryStore creates a directory store over the given pool.
func NewDirectoryStore(pool *pgxpool.Pool) *DirectoryStore {
	return &DirectoryStore{pool: pool}
}

// ListUnits returns the ids of every known organizational unit.
func (s *DirectoryStore) ListUnits(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM units ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var unitIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan unit row: %w", err)
		}
		unitIDs = append(unitIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read unit rows: %w", err)
	}
	return unitIDs, nil
}

// GetAllUsersFromUnit returns every user principal of one unit.
func (s *DirectoryStore) GetAllUsersFromUnit(ctx context.Context, unitID string) ([]models.Principal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, unit_id, login, last_name, first_name, display_name, email, profile, classes, functions
		FROM users
		WHERE unit_id = $1
		ORDER BY id
	`, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query users for unit %s: %w", unitID, err)
	}
	defer rows.Close()

	var users []models.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user rows: %w", err)
	}
	return users, nil
}

// GetAllGroupsFromUnit returns every group of one unit.
func (s *DirectoryStore) GetAllGroupsFromUnit(ctx context.Context, unitID string) ([]models.Group, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, unit_id, name, email, profile
		FROM groups
		WHERE unit_id = $1
		ORDER BY id
	`, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups for unit %s: %w", unitID, err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		var profile string
		if err := rows.Scan(&g.ID, &g.UnitID, &g.Name, &g.Email, &profile); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		g.Profile = models.Profile(profile)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read group rows: %w", err)
	}
	return groups, nil
}

// GetUser returns one principal by directory id.
func (s *DirectoryStore) GetUser(ctx context.Context, principalID string) (models.Principal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, unit_id, login, last_name, first_name, display_name, email, profile, classes, functions
		FROM users
		WHERE id = $1
	`, principalID)

	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Principal{}, fmt.Errorf("principal %s: %w", principalID, ErrUserNotFound)
	}
	return p, err
}

func scanPrincipal(row pgx.Row) (models.Principal, error) {
	var p models.Principal
	var profile string
	err := row.Scan(&p.ID, &p.UnitID, &p.Login, &p.LastName, &p.FirstName, &p.DisplayName, &p.Email, &profile, &p.Classes, &p.Functions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Principal{}, err
		}
		return models.Principal{}, fmt.Errorf("failed to scan user row: %w", err)
	}
	p.Profile = models.Profile(profile)
	return p, nil
}
