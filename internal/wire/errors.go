package wire

import "errors"

// ErrDisconnected is returned when the remote end closed the connection
// cleanly before any bytes of a new message arrived.
var ErrDisconnected = errors.New("wire: connection closed by peer")

// ErrShortRead is returned when a read is interrupted mid-message by
// something other than a clean disconnect.
var ErrShortRead = errors.New("wire: short read")

// InvalidTypeError is returned by ReadClientMessage when the type tag
// byte does not correspond to a known client-originated message type.
type InvalidTypeError struct {
	Got byte
}

func (e *InvalidTypeError) Error() string {
	return "wire: invalid message type byte"
}
