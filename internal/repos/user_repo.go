package repos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"quickbite/internal/apperr"
	"quickbite/internal/domain"
)

const userCols = `id,email,name,phone,password_hash,role,created_at`

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.CreatedAt == "" {
		u.CreatedAt = now()
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users(id,email,name,phone,password_hash,role,created_at)
		VALUES(?,?,?,?,?,?,?)
	`, u.ID, u.Email, u.Name, u.Phone, u.Hash, u.Role, u.CreatedAt)
	if isUnique(err) {
		return apperr.Conflictf("email already registered")
	}
	return err
}

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE LOWER(email)=LOWER(?)`, email)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

// List returns users newest first, optionally only one role.
func (r *UserRepo) List(ctx context.Context, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	q := `SELECT ` + userCols + ` FROM users`
	args := []any{}
	if role != "" {
		q += ` WHERE role=?`
		args = append(args, role)
	}
	q += ` ORDER BY created_at DESC, email`
	err := r.DB.SelectContext(ctx, &out, q, args...)
	return out, err
}

func (r *UserRepo) BindSession(ctx context.Context, sid, userID string) error {
	ts := now()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO sessions(id,user_id,created_at,last_seen)
		VALUES(?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET user_id=excluded.user_id,last_seen=excluded.last_seen
	`, sid, userID, ts, ts)
	return err
}

func (r *UserRepo) SessionUser(ctx context.Context, sid string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `
		SELECT u.id,u.email,u.name,u.phone,u.password_hash,u.role,u.created_at
		FROM sessions s
		JOIN users u ON u.id=s.user_id
		WHERE s.id=?`, sid)
	if err != nil {
		return nil, notFound(err, "session")
	}
	return &u, nil
}

func (r *UserRepo) UnbindSession(ctx context.Context, sid string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE sessions SET user_id=NULL,last_seen=? WHERE id=?`, now(), sid)
	return err
}
