package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ticketly/ticket-service/internal/domain"
)

// UserFilter captures listing parameters for users.
type UserFilter struct {
	Role    *domain.Role
	Search  string
	SortAsc bool
	Limit   int
	Offset  int
}

// UserRepository defines persistence access for user credentials.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*domain.User, error)
	GetByResetToken(ctx context.Context, token string) (*domain.User, error)
	SetRefreshTokenHash(ctx context.Context, id string, hash *string) error
	List(ctx context.Context, filter UserFilter) ([]domain.User, int, error)
	// DeleteCascade removes the user and every ticket they created atomically.
	DeleteCascade(ctx context.Context, id string) (int, error)
	// PurgeUnverified deletes unverified accounts whose verification expired before the cutoff.
	PurgeUnverified(ctx context.Context, before time.Time) (int, error)
}

const userColumns = `id, first_name, last_name, email, phone, password_hash, display_picture, role,
       is_verified, verification_token, verification_expires, reset_token, reset_expires,
       refresh_token_hash, created_at, updated_at`

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Phone,
		&user.PasswordHash,
		&user.DisplayPicture,
		&user.Role,
		&user.IsVerified,
		&user.VerificationToken,
		&user.VerificationExpires,
		&user.ResetToken,
		&user.ResetExpires,
		&user.RefreshTokenHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (first_name, last_name, email, phone, password_hash, display_picture, role,
                           is_verified, verification_token, verification_expires)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.DisplayPicture,
		user.Role,
		user.IsVerified,
		user.VerificationToken,
		user.VerificationExpires,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return translate(err)
}

// Update persists every mutable field except email and the refresh hash.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET first_name=$1, last_name=$2, phone=$3, password_hash=$4, display_picture=$5,
            role=$6, is_verified=$7, verification_token=$8, verification_expires=$9,
            reset_token=$10, reset_expires=$11, updated_at=NOW()
        WHERE id=$12
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.PasswordHash,
		user.DisplayPicture,
		user.Role,
		user.IsVerified,
		user.VerificationToken,
		user.VerificationExpires,
		user.ResetToken,
		user.ResetExpires,
		user.ID,
	).Scan(&user.UpdatedAt)
	return translate(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone=$1`, phone))
}

func (r *userRepository) GetByVerificationToken(ctx context.Context, token string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE verification_token=$1`, token))
}

func (r *userRepository) GetByResetToken(ctx context.Context, token string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE reset_token=$1`, token))
}

func (r *userRepository) SetRefreshTokenHash(ctx context.Context, id string, hash *string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE users SET refresh_token_hash=$1, updated_at=NOW() WHERE id=$2`, hash, id)
	if err != nil {
		return translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		args = append(args, containsPattern(term))
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			`(first_name ILIKE %[1]s ESCAPE '\' OR last_name ILIKE %[1]s ESCAPE '\' OR email ILIKE %[1]s ESCAPE '\' OR role ILIKE %[1]s ESCAPE '\')`, p))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	order := "DESC"
	if filter.SortAsc {
		order = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at %s, id %s%s`,
		userColumns, where, order, order, pageClause(filter.Limit, filter.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, translate(rows.Err())
}

func (r *userRepository) DeleteCascade(ctx context.Context, id string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var email string
	if err := tx.QueryRow(ctx, `SELECT email FROM users WHERE id=$1 FOR UPDATE`, id).Scan(&email); err != nil {
		return 0, translate(err)
	}

	cmd, err := tx.Exec(ctx, `DELETE FROM tickets WHERE created_by=$1`, email)
	if err != nil {
		return 0, translate(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM users WHERE id=$1`, id); err != nil {
		return 0, translate(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

// PurgeUnverified relies on the tickets foreign key to cascade.
func (r *userRepository) PurgeUnverified(ctx context.Context, before time.Time) (int, error) {
	cmd, err := r.pool.Exec(ctx, `
        DELETE FROM users
        WHERE is_verified = FALSE AND verification_expires IS NOT NULL AND verification_expires < $1`, before)
	if err != nil {
		return 0, translate(err)
	}
	return int(cmd.RowsAffected()), nil
}

func pageClause(limit, offset int) string {
	if limit <= 0 {
		return ""
	}
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}
