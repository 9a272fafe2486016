// Package auth handles accounts and stateless access tokens. Tokens are
// HS256 JWTs carrying the user's role and org, so the API can authorize
// without a session lookup.
package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("auth: user not found")
	// ErrEmailTaken is returned when the email is already registered in
	// the org.
	ErrEmailTaken = errors.New("auth: email already registered")
)

// User is the safe subset of an account returned to clients.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Store runs user queries scoped by org slug.
type Store struct {
	Pool *pgxpool.Pool
}

// CreateUser inserts an account with a pre-hashed password.
func (s Store) CreateUser(ctx context.Context, org, email, name, passwordHash, role string) (User, error) {
	const q = `
		INSERT INTO users (org_id, email, name, password_hash, role)
		VALUES ((SELECT id FROM organizations WHERE slug = $1), $2, $3, $4, $5)
		RETURNING id`
	u := User{Email: email, Name: name, Role: role}
	err := s.Pool.QueryRow(ctx, q, org, email, name, passwordHash, role).Scan(&u.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return User{}, ErrEmailTaken
	}
	return u, err
}

// GetByEmail fetches the account and password hash for login.
func (s Store) GetByEmail(ctx context.Context, org, email string) (User, string, error) {
	const q = `
		SELECT u.id, u.email, u.name, u.role, u.password_hash
		FROM users u
		JOIN organizations o ON o.id = u.org_id
		WHERE o.slug = $1 AND u.email = $2`
	var (
		u    User
		hash string
	)
	err := s.Pool.QueryRow(ctx, q, org, email).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, "", ErrNotFound
	}
	return u, hash, err
}

// GetByID fetches the account for the /me endpoint.
func (s Store) GetByID(ctx context.Context, org, id string) (User, error) {
	const q = `
		SELECT u.id, u.email, u.name, u.role
		FROM users u
		JOIN organizations o ON o.id = u.org_id
		WHERE o.slug = $1 AND u.id = $2`
	var u User
	err := s.Pool.QueryRow(ctx, q, org, id).Scan(&u.ID, &u.Email, &u.Name, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}
