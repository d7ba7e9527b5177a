package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptionsDSN(t *testing.T) {
	dsn := Options{User: "app", Pass: "secret", Host: "db", Port: "3306", Name: "movies"}.DSN()
	assert.True(t, strings.HasPrefix(dsn, "app:secret@tcp(db:3306)/movies?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestSchemaOrder(t *testing.T) {
	pos := map[string]int{}
	for i, stmt := range schema {
		for _, tbl := range []string{"users", "theaters", "movies", "showtimes", "reservations", "payments"} {
			if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS "+tbl+" ") {
				pos[tbl] = i
			}
		}
	}
	assert.Less(t, pos["users"], pos["reservations"])
	assert.Less(t, pos["showtimes"], pos["reservations"])
	assert.Less(t, pos["reservations"], pos["payments"])
	assert.Contains(t, schema[pos["reservations"]], "UNIQUE KEY uq_reservations_showtime_seat (showtime_id, seat_number)")
}
