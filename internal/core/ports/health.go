package ports

import "context"

// HealthChecker verifies connectivity of one infrastructure dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}
