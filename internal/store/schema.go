package store

import "fmt"

// Redis key pattern helpers
//
// All keys and Pub/Sub channels are namespaced by guild ID so several bots can
// share one Redis server.
//
// Key pattern: ctfboard:{guild}:{entity}
// Channel pattern: ctfboard:{guild}:{event_type}_events

// BoardKey returns the Redis key holding the last rendered board text.
// Pattern: ctfboard:{guild}:board
func BoardKey(guild string) string {
	return fmt.Sprintf("ctfboard:%s:board", guild)
}

// BoardEventsChannel returns the Pub/Sub channel for board mutation events.
// Pattern: ctfboard:{guild}:board_events
func BoardEventsChannel(guild string) string {
	return fmt.Sprintf("ctfboard:%s:board_events", guild)
}
