// Package ble reserves the Bluetooth LE channel. It enumerates no devices
// and refuses connections until a BLE file transfer client exists.
package ble

import (
	"context"
	"fmt"

	"github.com/nerrad567/boardsync-core/internal/transport"
)

// Channel is the BLE channel stub.
type Channel struct{}

// NewChannel returns the BLE stub.
func NewChannel() *Channel {
	return &Channel{}
}

// Kind returns transport.KindBLE.
func (*Channel) Kind() transport.Kind {
	return transport.KindBLE
}

// Enumerate always reports no devices.
func (*Channel) Enumerate(ctx context.Context) ([]transport.Endpoint, error) {
	return nil, ctx.Err()
}

// Connect always fails with transport.ErrUnsupported.
func (*Channel) Connect(_ context.Context, ep transport.Endpoint) (transport.Session, error) {
	return nil, fmt.Errorf("%w: ble endpoint %q", transport.ErrUnsupported, ep.Address)
}
