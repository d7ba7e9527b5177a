package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/movie-reservation/internal/model"
)

// PaymentRepo persists payment attempts in the payments table.  Each row
// references a reservation (ON DELETE CASCADE) and carries the gateway's
// intent id under a unique key so callbacks can locate it.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, reservation_id, user_id, amount_cents, currency, intent_id, status, failure_reason, created_at, paid_at, refunded_at`

// CreatePayment inserts p and fills its ID.
func (r *PaymentRepo) CreatePayment(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, user_id, amount_cents, currency, intent_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q, p.ReservationID, p.UserID, p.AmountCents, p.Currency, p.IntentID, string(p.Status), p.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		if isMissingParent(err) {
			return ErrNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetPayment loads a payment by primary key.
func (r *PaymentRepo) GetPayment(ctx context.Context, id uint64) (*model.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
}

// GetPaymentByIntent loads a payment by its external intent id.
func (r *PaymentRepo) GetPaymentByIntent(ctx context.Context, intentID string) (*model.Payment, error) {
	return r.getOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE intent_id = ?`, intentID)
}

// ListPaymentsByReservation returns every attempt for a reservation, oldest first.
func (r *PaymentRepo) ListPaymentsByReservation(ctx context.Context, reservationID uint64) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reservation_id = ? ORDER BY id`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// TransitionPayment applies ch when the row's status still equals from.
// The status write and the reservation's is_paid flag commit together; if
// another writer moved the payment first, nothing is written and false is
// returned so the caller can reload and decide again.
func (r *PaymentRepo) TransitionPayment(ctx context.Context, id uint64, from model.PaymentStatus, ch PaymentChange) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const upd = `UPDATE payments
                 SET status = ?,
                     paid_at = COALESCE(?, paid_at),
                     refunded_at = COALESCE(?, refunded_at),
                     failure_reason = COALESCE(?, failure_reason)
                 WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, upd, string(ch.To), nullTime(ch.PaidAt), nullTime(ch.RefundedAt), nullString(ch.FailureReason), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if ch.SyncPaid {
		var resID uint64
		if err := tx.QueryRowContext(ctx, `SELECT reservation_id FROM payments WHERE id = ?`, id).Scan(&resID); err != nil {
			return false, err
		}
		const paid = `UPDATE reservations
                      SET is_paid = EXISTS(SELECT 1 FROM payments WHERE reservation_id = ? AND status = ?)
                      WHERE id = ?`
		if _, err := tx.ExecContext(ctx, paid, resID, string(model.PaymentSucceeded), resID); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

func (r *PaymentRepo) getOne(ctx context.Context, q string, arg any) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func scanPayment(s rowScanner) (*model.Payment, error) {
	var p model.Payment
	var status string
	var reason sql.NullString
	var paidAt, refundedAt sql.NullTime
	err := s.Scan(&p.ID, &p.ReservationID, &p.UserID, &p.AmountCents, &p.Currency, &p.IntentID,
		&status, &reason, &p.CreatedAt, &paidAt, &refundedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	p.FailureReason = reason.String
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	if refundedAt.Valid {
		t := refundedAt.Time
		p.RefundedAt = &t
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
