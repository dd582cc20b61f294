package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// NewMember carries the plaintext password; only its bcrypt hash is stored.
// A member created without a password cannot log in.
type NewMember struct {
	Email    string
	Password string
	Role     string
	Name     string
	Phone    string
	Address  string
}

const memberColumns = `id, email, password_hash, role, name, phone, address, created_at, updated_at`

func scanMember(row interface{ Scan(...any) error }, m *models.Member) error {
	return row.Scan(
		&m.ID,
		&m.Email,
		&m.PasswordHash,
		&m.Role,
		&m.Name,
		&m.Phone,
		&m.Address,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
}

func CreateMember(ctx context.Context, q database.Querier, m NewMember) (*models.Member, error) {
	var hash string
	if m.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(m.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = string(b)
	}

	role := m.Role
	if role == "" {
		role = models.MemberRoleCustomer
	}

	member := &models.Member{}

	query := `
		INSERT INTO members (email, password_hash, role, name, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING ` + memberColumns

	err := scanMember(q.QueryRowContext(ctx, query, m.Email, hash, role, m.Name, m.Phone, m.Address), member)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrMemberExists
		}
		return nil, fmt.Errorf("create member: %w", err)
	}

	return member, nil
}

func GetMember(ctx context.Context, q database.Querier, id int64) (*models.Member, error) {
	member := &models.Member{}

	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	if err := scanMember(q.QueryRowContext(ctx, query, id), member); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	return member, nil
}

func GetMemberByEmail(ctx context.Context, q database.Querier, email string) (*models.Member, error) {
	member := &models.Member{}

	query := `SELECT ` + memberColumns + ` FROM members WHERE email = $1`

	if err := scanMember(q.QueryRowContext(ctx, query, email), member); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member by email: %w", err)
	}

	return member, nil
}

// Authenticate returns the member whose email and password match. An unknown
// email and a wrong password both yield ErrInvalidCredentials.
func Authenticate(ctx context.Context, q database.Querier, email, password string) (*models.Member, error) {
	member, err := GetMemberByEmail(ctx, q, email)
	if err != nil {
		if errors.Is(err, database.ErrMemberNotFound) {
			return nil, database.ErrInvalidCredentials
		}
		return nil, err
	}

	if member.PasswordHash == "" {
		return nil, database.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(member.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, database.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	return member, nil
}

func MemberExists(ctx context.Context, q database.Querier, id int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM members WHERE id = $1)",
		id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member exists: %w", err)
	}
	return exists, nil
}
