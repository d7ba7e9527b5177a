package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-reservation/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

var insertReservation = regexp.QuoteMeta("INSERT INTO reservations (showtime_id, user_id, seat_number")

func TestReserveMapsMySQLErrors(t *testing.T) {
	fkMessage := func(constraint string) string {
		return "Cannot add or update a child row: a foreign key constraint fails (`movie`.`reservations`, CONSTRAINT `" + constraint + "` FOREIGN KEY)"
	}
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"seat held", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry '3-12' for key 'uq_reservations_showtime_seat'"}, ErrSeatTaken},
		{"showtime gone", &mysql.MySQLError{Number: 1452, Message: fkMessage("fk_reservations_showtime")}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectExec(insertReservation).
				WithArgs(uint64(3), uint64(8), 12, "ABCD1234", false, sqlmock.AnyArg()).
				WillReturnError(tc.err)

			err := NewReservationRepo(db).Reserve(context.Background(), &model.Reservation{ShowtimeID: 3, UserID: 8, SeatNumber: 12, SecretCode: "ABCD1234"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestReserveSurfacesUserForeignKey(t *testing.T) {
	db, mock := newMock(t)
	userFK := &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row: a foreign key constraint fails " +
		"(`movie`.`reservations`, CONSTRAINT `fk_reservations_user` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`))"}
	mock.ExpectExec(insertReservation).WillReturnError(userFK)

	err := NewReservationRepo(db).Reserve(context.Background(), &model.Reservation{ShowtimeID: 3, UserID: 99, SeatNumber: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrSeatTaken)
}

func TestReserveFillsID(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(insertReservation).WillReturnResult(sqlmock.NewResult(7, 1))

	res := &model.Reservation{ShowtimeID: 3, UserID: 8, SeatNumber: 12}
	require.NoError(t, NewReservationRepo(db).Reserve(context.Background(), res))
	assert.Equal(t, uint64(7), res.ID)
	assert.Equal(t, time.UTC, res.CreatedAt.Location())
}

func TestUpdateSeatMapsDuplicate(t *testing.T) {
	db, mock := newMock(t)
	q := regexp.QuoteMeta("UPDATE reservations SET seat_number = ? WHERE id = ?")
	mock.ExpectExec(q).WithArgs(5, uint64(4)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '3-5' for key 'uq_reservations_showtime_seat'"})
	mock.ExpectExec(q).WithArgs(6, uint64(4)).WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewReservationRepo(db)
	assert.ErrorIs(t, repo.UpdateSeat(context.Background(), 4, 5), ErrSeatTaken)
	assert.NoError(t, repo.UpdateSeat(context.Background(), 4, 6))
}

func TestReleaseUnpaidReportsWhetherDeleted(t *testing.T) {
	db, mock := newMock(t)
	q := regexp.QuoteMeta("DELETE FROM reservations")
	args := []driver.Value{uint64(9), uint64(9), "failed", "refunded", "canceled"}
	mock.ExpectExec(q).WithArgs(args...).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(args...).WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewReservationRepo(db)
	ok, err := repo.ReleaseUnpaid(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ReleaseUnpaid(context.Background(), 9)
	require.NoError(t, err)
	assert.False(t, ok, "paid or settling hold is kept")
}

func TestTransitionPaymentRecomputesPaidFlag(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).
		WithArgs("refunded", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(2), "succeeded").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT reservation_id FROM payments WHERE id = ?")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"reservation_id"}).AddRow(11))
	mock.ExpectExec(regexp.QuoteMeta("SET is_paid = EXISTS(SELECT 1 FROM payments WHERE reservation_id = ? AND status = ?)")).
		WithArgs(uint64(11), "succeeded", uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := NewPaymentRepo(db).TransitionPayment(context.Background(), 2, model.PaymentSucceeded,
		PaymentChange{To: model.PaymentRefunded, RefundedAt: &now, SyncPaid: true})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransitionPaymentLosesRace(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := NewPaymentRepo(db).TransitionPayment(context.Background(), 2, model.PaymentRequiresPayment,
		PaymentChange{To: model.PaymentSucceeded, SyncPaid: true})
	require.NoError(t, err)
	assert.False(t, ok)
}
