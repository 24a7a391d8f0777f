package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/features/user/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts the user and its wallet in a single transaction; a wallet's
// lifecycle equals its owner's.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const qUser = `
	INSERT INTO users (id, username, password_hash, linking_key, display_name, lightning_address, is_admin, created_at, updated_at)
	VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5, NULLIF($6,''), $7, $8, $9)`
	_, err = tx.ExecContext(ctx, qUser,
		u.ID, u.Username, u.PasswordHash, u.LinkingKey, u.DisplayName, u.LightningAddress, u.IsAdmin, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apperrors.NewConflictError("user", "username or linking key already registered")
		}
		return err
	}

	const qWallet = `INSERT INTO wallets (user_id, balance_sats) VALUES ($1, 0)`
	if _, err = tx.ExecContext(ctx, qWallet, u.ID); err != nil {
		return err
	}

	return tx.Commit()
}

const userColumns = `id, COALESCE(username,''), COALESCE(password_hash,''), COALESCE(linking_key,''),
	display_name, COALESCE(lightning_address,''), is_admin, created_at, updated_at`

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.LinkingKey,
		&u.DisplayName, &u.LightningAddress, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
}

func (r *UserRepository) GetByLinkingKey(ctx context.Context, linkingKey string) (*models.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE linking_key=$1`, linkingKey))
}

func (r *UserRepository) UpdateLightningAddress(ctx context.Context, id, address string) error {
	const q = `UPDATE users SET lightning_address=NULLIF($2,''), updated_at=now() WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q, id, address)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("user")
	}
	return nil
}
