package scrubber

// ErrInvalidInput signals a command was rejected synchronously: setting
// the anchor to a play without a timestamp, an empty search query, and
// similar caller mistakes.
type ErrInvalidInput struct {
	Message string
}

func (e *ErrInvalidInput) Error() string { return "scrubber: invalid input: " + e.Message }
