package petri

import "errors"

var (
	// Structural errors
	ErrInvalidName      = errors.New("ptnet: invalid name")
	ErrRepeatedName     = errors.New("ptnet: name already registered")
	ErrRepeatedArcPlace = errors.New("ptnet: place repeated in arc list")
	ErrMissingCallback  = errors.New("ptnet: named callback is not resolvable")
	ErrArcWeight        = errors.New("ptnet: invalid arc weight")

	// Marking errors
	ErrNotInputPlace   = errors.New("ptnet: not an input place")
	ErrNullTokens      = errors.New("ptnet: cannot add zero tokens")
	ErrNotEnoughTokens = errors.New("ptnet: not enough tokens")
	ErrOverflow        = errors.New("ptnet: token count overflow")

	// Serialization errors
	ErrImportFormat = errors.New("ptnet: malformed net description")
)
