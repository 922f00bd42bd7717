package core

import "errors"

// ErrIndexOutOfRange is returned by queue operations given an invalid
// index. The queue state is unchanged when it is returned.
var ErrIndexOutOfRange = errors.New("queue index out of range")
