package errs

// ErrPanic converts a recovered panic value into a coded internal error.
func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return ErrServerInternal.WrapMsg("panic recovered", "panic", r)
}
