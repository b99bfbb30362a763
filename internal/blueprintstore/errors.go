package blueprintstore

// NotFoundError is returned for a missing branch, blueprint or commit.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// StorageError wraps underlying object-store I/O or corruption failures.
type StorageError struct {
	Message string
}

func (e *StorageError) Error() string {
	return e.Message
}
