package queue

// QueueError covers invalid state transitions, unknown compose types, and
// submission failures.
type QueueError struct {
	Message string
}

func (e *QueueError) Error() string {
	return e.Message
}

// NotFoundError is returned when a uuid names no build in any of new/,
// run/, or results/.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// LogUnavailableError is returned by UUIDLog when the installer log does
// not exist yet (the build hasn't produced output, or never will).
type LogUnavailableError struct {
	Message string
}

func (e *LogUnavailableError) Error() string {
	return e.Message
}

// CancelError is returned by UUIDCancel and UUIDDelete when id is not in a
// state that action is legal for (WAITING/RUNNING for cancel,
// FINISHED/FAILED for delete). The API layer reports this as
// {status:false} with HTTP 200, not a hard 400.
type CancelError struct {
	Message string
}

func (e *CancelError) Error() string {
	return e.Message
}
