// pkg/users/postgres.go
package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresStore constructs a PostgreSQL-backed credential store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{dbPool: dbPool, log: log}
}

// EnsureSchema creates the users table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS users (
  id bigserial PRIMARY KEY,
  username text UNIQUE NOT NULL,
  password_hash text NOT NULL,
  role text NOT NULL DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

// SeedAdmin inserts the conventional admin/admin account if no admin user
// exists yet. Idempotent.
func SeedAdmin(ctx context.Context, dbPool *pgxpool.Pool, log *zap.SugaredLogger) error {
	var n int
	if err := dbPool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username='admin'`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if _, err := dbPool.Exec(ctx,
		`INSERT INTO users(username, password_hash, role) VALUES ($1,$2,$3)`,
		"admin", string(hash), "Admin"); err != nil {
		return err
	}
	log.Infow("seeded admin user (admin/admin)")
	return nil
}

func (s *pgStore) FindByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.dbPool.QueryRow(ctx,
		`SELECT id, username, password_hash, role FROM users WHERE username=$1`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *pgStore) FindByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.dbPool.QueryRow(ctx,
		`SELECT id, username, password_hash, role FROM users WHERE id=$1`,
		id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *pgStore) Create(ctx context.Context, username, passwordHash, role string) (User, error) {
	var u User
	err := s.dbPool.QueryRow(ctx,
		`INSERT INTO users(username, password_hash, role) VALUES ($1,$2,$3)
		 RETURNING id, username, password_hash, role`,
		username, passwordHash, role).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return User{}, ErrDuplicate
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
