package entities

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrShipmentNotFound = errors.New("shipment not found")

	// ErrConstraintViolation is returned when an insert or link collides with a
	// unique constraint (business identifier or the one-order-per-shipment rule).
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrIllegalTransition is returned for status changes out of a terminal
	// state and for attempts to delete a delivered shipment.
	ErrIllegalTransition = errors.New("illegal status transition")

	ErrAlreadyLinked = errors.New("order already has a linked shipment")
	ErrNotLinked     = errors.New("order has no linked shipment")

	// ErrCorruptSequence is returned when the highest stored business
	// identifier does not parse and the next one cannot be derived.
	ErrCorruptSequence = errors.New("corrupt identifier sequence")
)
