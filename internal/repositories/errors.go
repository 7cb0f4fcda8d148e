package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record does not exist locally or in the
	// identity provider.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrGatewayUnreachable is returned when the identity provider cannot be
	// reached at the network level. No mutation happened.
	ErrGatewayUnreachable = errors.New("identity provider unreachable")
)

// GatewayRejectedError is returned when the identity provider answered but
// refused the operation, for example a duplicate username or an unknown role.
type GatewayRejectedError struct {
	Operation string
	Status    string
	Message   string
}

func (e *GatewayRejectedError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("identity provider rejected %s (%s): %s", e.Operation, e.Status, e.Message)
	}
	return fmt.Sprintf("identity provider rejected %s: %s", e.Operation, e.Message)
}

// IsNotFoundError reports whether err means the record does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsGatewayRejected reports whether err carries a provider rejection.
func IsGatewayRejected(err error) bool {
	var rejected *GatewayRejectedError
	return errors.As(err, &rejected)
}
