// Package directory exposes the building/user records this service does
// not own. Only existence and contact fields are consumed here.
package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Building struct {
	ID     string
	Name   string
	Active bool
}

type User struct {
	ID         string
	BuildingID string
	Name       string
	Phone      string
	Email      string
	Role       string
	Active     bool
}

type Directory struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) FindBuilding(ctx context.Context, id string) (Building, bool, error) {
	var b Building
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, active FROM buildings WHERE id = $1
	`, id)
	if err := row.Scan(&b.ID, &b.Name, &b.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Building{}, false, nil
		}
		return Building{}, false, err
	}
	return b, b.Active, nil
}

func (d *Directory) FindUser(ctx context.Context, id string) (User, bool, error) {
	var u User
	row := d.pool.QueryRow(ctx, `
		SELECT id, building_id, name, phone, email, role, active FROM users WHERE id = $1
	`, id)
	if err := row.Scan(&u.ID, &u.BuildingID, &u.Name, &u.Phone, &u.Email, &u.Role, &u.Active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	return u, u.Active, nil
}
