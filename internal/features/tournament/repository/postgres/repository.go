package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lightning-tournament-backend/internal/features/tournament/models"
)

type TournamentRepository struct {
	db *sql.DB
}

func NewTournamentRepository(db *sql.DB) *TournamentRepository {
	return &TournamentRepository{db: db}
}

const tournamentColumns = `id, to_char(date, 'YYYY-MM-DD'), buy_in_sats, prize_pool_sats, status, start_time, end_time, created_at`

func scanTournament(row interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	var t models.Tournament
	err := row.Scan(&t.ID, &t.Date, &t.BuyInSats, &t.PrizePoolSats, &t.Status, &t.StartTime, &t.EndTime, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TournamentRepository) CreateTournament(ctx context.Context, t *models.Tournament) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tournaments (id, date, buy_in_sats, prize_pool_sats, status, start_time, end_time)
		 VALUES ($1, $2::date, $3, 0, 'open', $4, $5)
		 ON CONFLICT (date) DO NOTHING`,
		t.ID, t.Date, t.BuyInSats, t.StartTime, t.EndTime)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *TournamentRepository) GetByDate(ctx context.Context, date string) (*models.Tournament, error) {
	return scanTournament(r.db.QueryRowContext(ctx,
		`SELECT `+tournamentColumns+` FROM tournaments WHERE date=$1::date`, date))
}

func (r *TournamentRepository) GetByID(ctx context.Context, id string) (*models.Tournament, error) {
	return scanTournament(r.db.QueryRowContext(ctx,
		`SELECT `+tournamentColumns+` FROM tournaments WHERE id=$1`, id))
}

func (r *TournamentRepository) ListOpenEnded(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tournamentColumns+` FROM tournaments WHERE status='open' AND end_time <= $1 ORDER BY date`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TournamentRepository) UpdatePrizePool(ctx context.Context, tournamentID string, deltaSats int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tournaments SET prize_pool_sats = prize_pool_sats + $2 WHERE id=$1`,
		tournamentID, deltaSats)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("tournament %s not found", tournamentID)
	}
	return nil
}

func (r *TournamentRepository) CloseTournament(ctx context.Context, tournamentID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tournaments SET status='completed' WHERE id=$1 AND status='open'`, tournamentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const entryColumns = `id, tournament_id, user_id, attempts_used, max_attempts,
	attempt1_score, attempt2_score, attempt3_score, best_score, created_at, updated_at`

func scanEntry(row interface{ Scan(...interface{}) error }) (*models.Entry, error) {
	var e models.Entry
	var a1, a2, a3 sql.NullInt64
	err := row.Scan(&e.ID, &e.TournamentID, &e.UserID, &e.AttemptsUsed, &e.MaxAttempts,
		&a1, &a2, &a3, &e.BestScore, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if a1.Valid {
		e.Attempt1Score = &a1.Int64
	}
	if a2.Valid {
		e.Attempt2Score = &a2.Int64
	}
	if a3.Valid {
		e.Attempt3Score = &a3.Int64
	}
	return &e, nil
}

// GetOrCreateEntry полагается на ON CONFLICT: при гонке оба вызова вернут
// одну и ту же строку.
func (r *TournamentRepository) GetOrCreateEntry(ctx context.Context, tournamentID, userID string) (*models.Entry, error) {
	// DO UPDATE with a no-op assignment makes RETURNING yield the row on
	// conflict as well.
	return scanEntry(r.db.QueryRowContext(ctx,
		`INSERT INTO entries (id, tournament_id, user_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tournament_id, user_id) DO UPDATE SET updated_at = entries.updated_at
		 RETURNING `+entryColumns,
		uuid.NewString(), tournamentID, userID))
}

func (r *TournamentRepository) GetEntry(ctx context.Context, tournamentID, userID string) (*models.Entry, error) {
	return scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE tournament_id=$1 AND user_id=$2`,
		tournamentID, userID))
}

// SettleBuyIn создает запись участника и пополняет призовой фонд в одной
// транзакции. Существующая запись означает, что оплата уже учтена.
func (r *TournamentRepository) SettleBuyIn(ctx context.Context, tournamentID, userID string, amountSats int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (id, tournament_id, user_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (tournament_id, user_id) DO NOTHING`,
		uuid.NewString(), tournamentID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		err = tx.Commit()
		return false, err
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE tournaments SET prize_pool_sats = prize_pool_sats + $2 WHERE id=$1`,
		tournamentID, amountSats); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// IncrementAttempt — единственная точка сериализации лимита попыток. Гард
// стоит в самом UPDATE; при исчерпании лимита строк не обновляется и
// возвращается nil.
func (r *TournamentRepository) IncrementAttempt(ctx context.Context, entryID string) (*models.Entry, error) {
	return scanEntry(r.db.QueryRowContext(ctx,
		`UPDATE entries SET attempts_used = attempts_used + 1, updated_at = now()
		 WHERE id=$1 AND attempts_used < max_attempts
		 RETURNING `+entryColumns, entryID))
}

// RecordAttemptScore пишет колонку attempt_k через CASE по параметру: номер
// попытки никогда не попадает в текст запроса.
func (r *TournamentRepository) RecordAttemptScore(ctx context.Context, entryID string, k int, score int64) (*models.Entry, error) {
	if k < 1 || k > 3 {
		return nil, fmt.Errorf("attempt number %d out of range", k)
	}
	return scanEntry(r.db.QueryRowContext(ctx,
		`UPDATE entries SET
		   attempt1_score = CASE WHEN $2 = 1 THEN $3 ELSE attempt1_score END,
		   attempt2_score = CASE WHEN $2 = 2 THEN $3 ELSE attempt2_score END,
		   attempt3_score = CASE WHEN $2 = 3 THEN $3 ELSE attempt3_score END,
		   best_score = GREATEST(best_score, $3),
		   updated_at = now()
		 WHERE id=$1
		 RETURNING `+entryColumns,
		entryID, k, score))
}

func (r *TournamentRepository) UpdateBestScore(ctx context.Context, entryID string, score int64) (*models.Entry, error) {
	return scanEntry(r.db.QueryRowContext(ctx,
		`UPDATE entries SET best_score = GREATEST(best_score, $2), updated_at = now()
		 WHERE id=$1
		 RETURNING `+entryColumns,
		entryID, score))
}

func (r *TournamentRepository) Leaderboard(ctx context.Context, tournamentID string, limit int) ([]*models.LeaderboardRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.user_id, u.display_name, e.best_score
		 FROM entries e JOIN users u ON u.id = e.user_id
		 WHERE e.tournament_id=$1
		 ORDER BY e.best_score DESC, e.updated_at ASC
		 LIMIT $2`,
		tournamentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.LeaderboardRow
	for rows.Next() {
		var row models.LeaderboardRow
		if err := rows.Scan(&row.UserID, &row.DisplayName, &row.BestScore); err != nil {
			return nil, err
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}

func (r *TournamentRepository) PlayerCount(ctx context.Context, tournamentID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM entries WHERE tournament_id=$1`, tournamentID).Scan(&n)
	return n, err
}

func (r *TournamentRepository) TopWinners(ctx context.Context, tournamentID string, limit int) ([]*models.Winner, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT e.user_id, u.display_name, COALESCE(u.lightning_address,''), e.best_score, e.id
		 FROM entries e JOIN users u ON u.id = e.user_id
		 WHERE e.tournament_id=$1 AND e.best_score > 0
		 ORDER BY e.best_score DESC, e.updated_at ASC
		 LIMIT $2`,
		tournamentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Winner
	for rows.Next() {
		var w models.Winner
		if err := rows.Scan(&w.UserID, &w.DisplayName, &w.LightningAddress, &w.BestScore, &w.EntryID); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func (r *TournamentRepository) CreatePayout(ctx context.Context, p *models.Payout) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payouts (id, tournament_id, user_id, place, amount_sats, destination, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		 ON CONFLICT (tournament_id, place) DO NOTHING`,
		p.ID, p.TournamentID, p.UserID, p.Place, p.AmountSats, p.Destination)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *TournamentRepository) PendingPayouts(ctx context.Context, olderThan time.Duration) ([]*models.Payout, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tournament_id, user_id, place, amount_sats, destination, status,
		        COALESCE(payment_hash,''), failure_count, paid_at, created_at
		 FROM payouts
		 WHERE status='pending' AND created_at <= $1
		 ORDER BY created_at`,
		time.Now().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Payout
	for rows.Next() {
		var p models.Payout
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.UserID, &p.Place, &p.AmountSats,
			&p.Destination, &p.Status, &p.PaymentHash, &p.FailureCount, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *TournamentRepository) MarkPayoutPaid(ctx context.Context, payoutID, paymentHash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payouts SET status='paid', payment_hash=$2, paid_at=now()
		 WHERE id=$1 AND status='pending'`,
		payoutID, paymentHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payout %s not pending", payoutID)
	}
	return nil
}

func (r *TournamentRepository) IncrementPayoutFailure(ctx context.Context, payoutID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`UPDATE payouts SET failure_count = failure_count + 1 WHERE id=$1 RETURNING failure_count`,
		payoutID).Scan(&count)
	return count, err
}
