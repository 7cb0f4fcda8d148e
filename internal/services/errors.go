package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource conflict")
	ErrSyncInProgress = errors.New("reconciliation sweep already in progress")

	// Gateway errors are re-exported so callers do not depend on the
	// repositories package for error matching.
	ErrGatewayUnreachable = repositories.ErrGatewayUnreachable
)

type GatewayRejectedError = repositories.GatewayRejectedError

// ensureReachable probes the identity provider before a multi-step
// operation starts.
func ensureReachable(ctx context.Context, gateway repositories.IdentityGateway) error {
	if !gateway.IsReachable(ctx) {
		return fmt.Errorf("identity provider health probe failed: %w", ErrGatewayUnreachable)
	}
	return nil
}

// errNotRevertible is joined into a compensation error for external changes
// that have no inverse operation.
var errNotRevertible = errors.New("external change cannot be reverted")

// PartialFailureError is returned when a step failed after the identity
// provider had already been changed. CompensationErr is nil when every
// external change was undone.
type PartialFailureError struct {
	Operation       string
	IdentityID      string
	Cause           error
	CompensationErr error
}

func (e *PartialFailureError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("%s of identity %s failed and could not be compensated: %v (compensation: %v)",
			e.Operation, e.IdentityID, e.Cause, e.CompensationErr)
	}
	return fmt.Sprintf("%s of identity %s failed, external changes were compensated: %v",
		e.Operation, e.IdentityID, e.Cause)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Cause
}

// ReconciliationRequired reports whether the two systems were left
// inconsistent and need manual repair.
func (e *PartialFailureError) ReconciliationRequired() bool {
	return e.CompensationErr != nil
}

// IsPartialFailure unwraps err into a *PartialFailureError.
func IsPartialFailure(err error) (*PartialFailureError, bool) {
	var partial *PartialFailureError
	if errors.As(err, &partial) {
		return partial, true
	}
	return nil, false
}
