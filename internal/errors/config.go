package errors

import (
	"errors"
	"fmt"
)

// configError reports an invalid invocation. It is detected before any work
// starts; the message goes to standard output and the process exits with
// status 1.
type configError struct {
	msg string
}

func (e *configError) Error() string {
	return e.msg
}

// Configf returns an error describing an invalid configuration value.
func Configf(s string, data ...interface{}) error {
	return &configError{msg: fmt.Sprintf(s, data...)}
}

// IsConfig returns true if err was created by Configf.
func IsConfig(err error) bool {
	var cfg *configError
	return errors.As(err, &cfg)
}
