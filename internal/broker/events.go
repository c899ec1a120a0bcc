package appkafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type EventType string

const (
	PostLiked     EventType = "post_liked"
	PostReposted  EventType = "post_reposted"
	PostCommented EventType = "post_commented"
)

// InteractionEvent is published after an interaction has been committed.
type InteractionEvent struct {
	Type        EventType `json:"type"`
	PostID      int64     `json:"post_id"`
	PostOwnerID int64     `json:"post_owner_id"`
	ActorID     int64     `json:"actor_id"`
	ActorZenID  string    `json:"actor_zenid"`
	Created     time.Time `json:"created"`
}

// NotificationKind maps an event to the notification kind shown to users.
func (e InteractionEvent) NotificationKind() string {
	switch e.Type {
	case PostLiked:
		return "like"
	case PostReposted:
		return "repost"
	case PostCommented:
		return "comment"
	}
	return ""
}

// Encode builds the Kafka message for e, keyed by event type.
func (e InteractionEvent) Encode() (kafka.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{Key: []byte(e.Type), Value: data}, nil
}

// DecodeEvent parses a message produced by Encode.
func DecodeEvent(msg kafka.Message) (InteractionEvent, error) {
	var e InteractionEvent
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return e, fmt.Errorf("unmarshal event: %w", err)
	}
	if e.NotificationKind() == "" {
		return e, fmt.Errorf("unknown event type %q", e.Type)
	}
	return e, nil
}
