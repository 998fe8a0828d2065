package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrCodeNotFound       = errors.New("redemption code not found")
	ErrCodeAlreadyUsed    = errors.New("redemption code already used")
	ErrTrialAlreadyUsed   = errors.New("trial already started")
	ErrUpstream           = errors.New("payment provider rejected the request")
	ErrTransient          = errors.New("temporary failure, retry later")
	ErrConfiguration      = errors.New("service misconfigured")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")
)
