package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/boardsync-core/internal/transport"
)

// ChannelState is what the registry knows about a board on one channel.
type ChannelState struct {
	Endpoint transport.Endpoint `json:"endpoint"`
	Editable bool               `json:"editable"`
	SeenAt   time.Time          `json:"seen_at"`
}

// Board is the canonical record of one physical board.
type Board struct {
	Key             string                          `json:"key"`
	Serial          string                          `json:"serial,omitempty"`
	Name            string                          `json:"name"`
	FirmwareVersion string                          `json:"firmware_version,omitempty"`
	BoardID         string                          `json:"board_id,omitempty"`
	IP              string                          `json:"ip,omitempty"`
	Channels        map[transport.Kind]ChannelState `json:"channels"`
	Ready           bool                            `json:"ready"`
}

// FirmwareMajor returns the leading integer of the firmware version, or 0.
func (b Board) FirmwareMajor() int {
	return transport.DeviceInfo{FirmwareVersion: b.FirmwareVersion}.FirmwareMajor()
}

// Editable reports whether any channel currently accepts writes.
func (b Board) Editable() bool {
	for _, cs := range b.Channels {
		if cs.Editable {
			return true
		}
	}
	return false
}

// clone returns a copy that shares no maps with b.
func (b Board) clone() Board {
	out := b
	out.Channels = make(map[transport.Kind]ChannelState, len(b.Channels))
	for k, v := range b.Channels {
		out.Channels[k] = v
	}
	return out
}

// IdentityKey returns the registry key for a board seen at ep reporting info.
func IdentityKey(ep transport.Endpoint, info transport.DeviceInfo) string {
	if serial := strings.TrimSpace(info.SerialNumber); serial != "" {
		return strings.ToUpper(serial)
	}
	return fmt.Sprintf("%s:%s", ep.Kind, ep.Identity())
}

// displayName picks the name shown for a board.
func displayName(ep transport.Endpoint, info transport.DeviceInfo) string {
	switch {
	case info.BoardName != "":
		return info.BoardName
	case ep.Name != "":
		return ep.Name
	default:
		return ep.Identity()
	}
}

// PassResult summarises one discovery pass.
type PassResult struct {
	Generation uint64           `json:"generation"`
	Full       bool             `json:"full"`
	Kinds      []transport.Kind `json:"kinds"`
	Endpoints  int              `json:"endpoints"`
	Resolved   int              `json:"resolved"`
	Failed     int              `json:"failed"`
	Boards     int              `json:"boards"`
	Duration   time.Duration    `json:"duration"`
	// Err joins the enumerate failures of every channel in the pass.
	Err error `json:"-"`
}

// PassObserver is notified after every discovery pass.
type PassObserver interface {
	ObservePass(res PassResult)
}
