package postgres

import (
	"context"
	"database/sql"

	"lightning-tournament-backend/internal/features/lnurlauth/models"
)

type WhitelistRepository struct {
	db *sql.DB
}

func NewWhitelistRepository(db *sql.DB) *WhitelistRepository {
	return &WhitelistRepository{db: db}
}

func (r *WhitelistRepository) Upsert(ctx context.Context, e *models.WhitelistEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO whitelist (linking_key, display_name, is_admin, approved_by)
		 VALUES ($1, NULLIF($2, ''), $3, $4)
		 ON CONFLICT (linking_key) DO UPDATE
		 SET display_name = EXCLUDED.display_name,
		     is_admin = EXCLUDED.is_admin,
		     approved_by = EXCLUDED.approved_by,
		     approved_at = now()`,
		e.LinkingKey, e.DisplayName, e.IsAdmin, e.ApprovedBy)
	return err
}

func (r *WhitelistRepository) Get(ctx context.Context, linkingKey string) (*models.WhitelistEntry, error) {
	e := &models.WhitelistEntry{}
	err := r.db.QueryRowContext(ctx,
		`SELECT linking_key, COALESCE(display_name, ''), is_admin, approved_by, approved_at
		 FROM whitelist WHERE linking_key = $1`,
		linkingKey).Scan(&e.LinkingKey, &e.DisplayName, &e.IsAdmin, &e.ApprovedBy, &e.ApprovedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *WhitelistRepository) Delete(ctx context.Context, linkingKey string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM whitelist WHERE linking_key = $1`, linkingKey)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *WhitelistRepository) List(ctx context.Context) ([]*models.WhitelistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT linking_key, COALESCE(display_name, ''), is_admin, approved_by, approved_at
		 FROM whitelist ORDER BY approved_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.WhitelistEntry
	for rows.Next() {
		e := &models.WhitelistEntry{}
		if err := rows.Scan(&e.LinkingKey, &e.DisplayName, &e.IsAdmin, &e.ApprovedBy, &e.ApprovedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
