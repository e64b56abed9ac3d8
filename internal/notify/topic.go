package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/pubsub"
)

// Topic publishes events to a gocloud.dev pubsub topic.
//
// The body is the Event as JSON; the object id and tier ride along as
// message metadata so subscribers can filter without decoding.
type Topic struct {
	topic *pubsub.Topic
}

// NewTopic wraps an open pubsub topic. The caller owns the topic's
// lifetime and must Shutdown it when done.
func NewTopic(topic *pubsub.Topic) *Topic {
	return &Topic{topic: topic}
}

// Publish implements Notifier.
func (t *Topic) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			"objectId":   ev.ObjectID,
			"recordKind": ev.RecordKind,
			"tierKind":   ev.TierKind,
		},
	}
	if err := t.topic.Send(ctx, msg); err != nil {
		return fmt.Errorf("send event for %s: %w", ev.ObjectID, err)
	}
	return nil
}
