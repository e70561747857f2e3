package core

import "errors"

// Sentinel error kinds. Callers match with errors.Is; wrapped instances carry
// the offending value via fmt.Errorf("...: %w", ErrX).
var (
	ErrBadSignature   = errors.New("bad signature")
	ErrBadNonce       = errors.New("bad nonce")
	ErrDuplicate      = errors.New("duplicate transaction")
	ErrFull           = errors.New("mempool full")
	ErrInvalidBlock   = errors.New("invalid block")
	ErrStorageFailure = errors.New("storage failure")
	ErrDecodeFailure  = errors.New("decode failure")
	ErrNotFound       = errors.New("not found")
)
