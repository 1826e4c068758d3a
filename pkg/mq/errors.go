package mq

// TempError marks a failure as retryable: the consumer nacks the delivery
// back onto the queue instead of dropping it.
type TempError struct {
	Err error
}

func (e TempError) Error() string { return e.Err.Error() }

func (e TempError) Temporary() bool { return true }

func (e TempError) Unwrap() error { return e.Err }

// Temporary wraps err so the consumer requeues the delivery.
func Temporary(err error) error {
	return TempError{Err: err}
}
