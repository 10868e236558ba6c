package influxdb

import "errors"

var (
	// ErrDisabled is returned when operations are attempted on a disabled client.
	ErrDisabled = errors.New("influxdb: client is disabled")

	// ErrConnectionFailed is returned when the initial ping fails.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned when the client has no live connection.
	ErrNotConnected = errors.New("influxdb: not connected")
)
