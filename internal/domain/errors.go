package domain

import "errors"

var (
	ErrPlayerNotFound         = errors.New("player not found")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
	ErrDeliveryFailed         = errors.New("event delivery failed")
	ErrInvalidEvent           = errors.New("invalid event")
	ErrGameBusy               = errors.New("game phase in progress")
	ErrNotArmed               = errors.New("reaction target is not shown")
	ErrNoSequence             = errors.New("no sequence is awaiting input")
)
