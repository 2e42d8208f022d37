package pubsub

import (
	"fmt"
	"strings"
)

// Topic naming for collaborative rooms: room.<roomId>.<kind>.
const (
	topicPrefix = "room."

	KindCode   = "code"
	KindCursor = "cursor"
)

// CodeTopic returns the topic carrying document snapshots for roomID.
func CodeTopic(roomID string) string {
	return topicPrefix + roomID + "." + KindCode
}

// CursorTopic returns the topic carrying cursor updates for roomID.
func CursorTopic(roomID string) string {
	return topicPrefix + roomID + "." + KindCursor
}

// RoomPattern matches kind topics across all rooms, e.g. room.*.code.
func RoomPattern(kind string) string {
	return topicPrefix + "*." + kind
}

// ParseTopic splits a room topic into its room id and kind.
// Room ids may themselves contain dots.
func ParseTopic(topic string) (roomID, kind string, err error) {
	rest, ok := strings.CutPrefix(topic, topicPrefix)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	i := strings.LastIndexByte(rest, '.')
	if i <= 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	roomID, kind = rest[:i], rest[i+1:]
	if kind != KindCode && kind != KindCursor {
		return "", "", fmt.Errorf("%w: unknown kind %q", ErrInvalidTopic, kind)
	}
	return roomID, kind, nil
}
