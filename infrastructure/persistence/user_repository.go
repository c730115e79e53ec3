package persistence

import (
	"context"
	"database/sql"

	"event-sync/domain/model"
	"event-sync/domain/repository"
)

type UserRepository struct{ db *sql.DB }

func NewUserRepository(db *sql.DB) repository.IUser { return &UserRepository{db: db} }

func (r *UserRepository) GetById(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, user_name, password, created_at, updated_at FROM users WHERE id=$1`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByUserName(ctx context.Context, userName string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, user_name, password, created_at, updated_at FROM users WHERE user_name=$1`, userName)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*model.User, error) {
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.UserName, &u.Password, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}
