package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Board Sync MQTT hierarchy.
//
//	boardsync/event/{type}/{board}   board and sync events (not retained)
//	boardsync/command/rescan         rescan requests from other services
//	boardsync/system/status          retained online/offline status (LWT)
const (
	// TopicPrefix is the root of every Board Sync topic.
	TopicPrefix = "boardsync"

	// TopicPrefixEvent is the base for published events.
	TopicPrefixEvent = TopicPrefix + "/event"

	// TopicPrefixCommand is the base for inbound commands.
	TopicPrefixCommand = TopicPrefix + "/command"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for Board Sync MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Event("sync.install_result", "DE6164C4B3")
//	// Returns: "boardsync/event/sync.install_result/DE6164C4B3"
type Topics struct{}

// Event returns the topic for an event about one board.
// Events without a board (registry_cleared) use "_" as the board segment.
func (Topics) Event(eventType, boardKey string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixEvent, topicSegment(eventType), topicSegment(boardKey))
}

// AllEvents returns a wildcard matching every event of every board.
func (Topics) AllEvents() string {
	return TopicPrefixEvent + "/#"
}

// BoardEvents returns a wildcard matching every event about one board.
func (Topics) BoardEvents(boardKey string) string {
	return fmt.Sprintf("%s/+/%s", TopicPrefixEvent, topicSegment(boardKey))
}

// RescanCommand returns the topic other services publish to request a rescan.
func (Topics) RescanCommand() string {
	return TopicPrefixCommand + "/rescan"
}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// topicSegment makes s safe to use as a single topic level.
// Board keys such as "web:10.0.0.7:80" keep their colons; only characters
// with MQTT meaning are replaced.
func topicSegment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
