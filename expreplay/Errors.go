package expreplay

import "errors"

// ExpReplayError implements errors unique to an experience replay
// buffer.
type ExpReplayError struct {
	Op  string
	Err error
}

// Error satisifes the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

var errEmptyCache = errors.New("cache empty")

var errInsufficientSamples = errors.New("fewer samples than batch size")

var errIndexOutOfRange = errors.New("index out of range")

// IsInsufficientSamples returns whether or not an error reports that
// there are insufficient samples in the buffer to sample a batch.
func IsInsufficientSamples(err error) bool {
	return errors.Is(err, errInsufficientSamples)
}

// IsEmptyBuffer returns whether or not an error reports that a
// replay buffer is empty.
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyCache)
}

// IsIndexOutOfRange returns whether or not an error reports an access
// to a buffer slot that holds no experience
func IsIndexOutOfRange(err error) bool {
	return errors.Is(err, errIndexOutOfRange)
}
