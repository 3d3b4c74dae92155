package main

import "fmt"

// Errno is the stable-ordinal error taxonomy every fallible operation in
// the engine returns. The ordinals are part of the external contract: a
// future C shim recovers them with errors.As.
type Errno int

const (
	Success Errno = iota
	ItemNotFound
	InvalidAccess
	InvalidArgument
	InvalidData
	NoMemory
)

func (e Errno) Error() string {
	switch e {
	case Success:
		return "success"
	case ItemNotFound:
		return "item not found"
	case InvalidAccess:
		return "invalid access"
	case InvalidArgument:
		return "invalid argument"
	case InvalidData:
		return "invalid data"
	case NoMemory:
		return "no memory"
	default:
		return fmt.Sprintf("errno(%d)", int(e))
	}
}

// wrapErr attaches context to an Errno while keeping it recoverable via
// errors.As, mirroring the usual fmt.Errorf("...: %v", err) idiom but
// with %w so the ordinal survives.
func wrapErr(e Errno, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, error(e))...)
}
