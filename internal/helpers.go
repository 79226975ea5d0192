package internal

// Throws 'StupidDeveloperException'.
// Panics if given non-nil error.
// Should be used only in case of non-recoverable developer error.
func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}

// Returns v, panicking on a non-nil error the same way PanicOnError does.
func Must[T any](v T, err error) T {
	PanicOnError(err)
	return v
}
