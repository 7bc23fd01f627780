package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrTeamMemberNotFound = errors.New("team member not found")

// TeamMember is the minimal profile referenced by prospect assignments.
type TeamMember struct {
	ID    uuid.UUID
	Name  string
	Email string
}

func (r *Repository) GetTeamMember(ctx context.Context, id uuid.UUID) (TeamMember, error) {
	var m TeamMember
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email
		FROM team_members
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Name, &m.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TeamMember{}, ErrTeamMemberNotFound
		}
		return TeamMember{}, err
	}
	return m, nil
}

func (r *Repository) ListTeamMembers(ctx context.Context) ([]TeamMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, email
		FROM team_members
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]TeamMember, 0)
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Email); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
