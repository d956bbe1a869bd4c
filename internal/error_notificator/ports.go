package error_notificator

import "context"

type Notificator interface {
	// Notify sends an error report to the operator
	Notify(ctx context.Context, channel string, err error, details string) error
}
