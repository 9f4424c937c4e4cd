package channels

import "fmt"

// ErrChannelNotFound is returned when an operation targets a channel that
// is not in the dispatcher's active set.
type ErrChannelNotFound struct {
	Channel string
}

func (e *ErrChannelNotFound) Error() string {
	return fmt.Sprintf("channels: channel not found: %s", e.Channel)
}

// ErrNoPlatformFactory is returned when a channel spec names a platform
// with no registered ChannelFactory.
type ErrNoPlatformFactory struct {
	Channel  string
	Platform string
}

func (e *ErrNoPlatformFactory) Error() string {
	return fmt.Sprintf("channels: no factory for platform %q (channel %s)", e.Platform, e.Channel)
}

// ErrSendFailed is returned when a message could not be delivered to the
// platform.
type ErrSendFailed struct {
	Channel  string
	Platform string
	Cause    error
}

func (e *ErrSendFailed) Error() string {
	return fmt.Sprintf("channels: send failed on %s (%s): %v", e.Channel, e.Platform, e.Cause)
}

func (e *ErrSendFailed) Unwrap() error { return e.Cause }
