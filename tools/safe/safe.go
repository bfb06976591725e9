package safe

import (
	"PlayGrid/logger"
	errs "PlayGrid/tools/errs"
)

// Go starts a goroutine that recovers from panics so a fault in one
// connection's handler never takes down the process.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] %v", errs.ErrPanic(r))
			}
		}()
		f()
	}()
}

// Run invokes f inline with panic recovery, reporting the recovered value.
func Run(f func()) (recovered any) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
			logger.Errorf("[safe.Run] %v", errs.ErrPanic(r))
		}
	}()
	f()
	return nil
}
