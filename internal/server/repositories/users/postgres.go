package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avdeev/usersvc/internal/common"
	"github.com/avdeev/usersvc/internal/dbx"
	"github.com/avdeev/usersvc/internal/server/models"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (id, email, name, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role).Scan(&user.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, name, password_hash, role, created_at FROM users
		 WHERE email = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, email, name, password_hash, role, created_at FROM users
		 WHERE id = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query :=
		`SELECT id, email, name, password_hash, role, created_at FROM users
		 ORDER BY created_at
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.User{}
	for rows.Next() {
		user := &models.User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`UPDATE users SET email = $2, name = $3
		 WHERE id = $1
		 RETURNING password_hash, role, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.Name).
		Scan(&user.PasswordHash, &user.Role, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		if isUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query :=
		`DELETE FROM users
		 WHERE id = $1
		 `

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) ExistsByID(ctx context.Context, id string) (bool, error) {
	query :=
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)
		 `

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
