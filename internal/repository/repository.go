// Package repository implements all database queries for the administration
// back-end. It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a range changed between the read
// that computed an identifier and the write that confirms it.
var ErrVersionConflict = errors.New("range was modified concurrently")

// ErrNumberTaken is returned when an identifier has already been issued.
var ErrNumberTaken = errors.New("identifier already issued")

// ErrSlotTaken is returned when a booking overlaps an existing one.
var ErrSlotTaken = errors.New("slot already booked")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
