package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// PutEventsAPI is the slice of the EventBridge client the publisher needs.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, opts ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var ErrEventRejected = errors.New("broadcast: event rejected")

// EventBridge sends each message as one event. The channel travels in the
// detail so rules can route on it.
type EventBridge struct {
	api    PutEventsAPI
	bus    string
	source string
}

func NewEventBridge(api PutEventsAPI, bus, source string) *EventBridge {
	if source == "" {
		source = "infodot.api"
	}
	return &EventBridge{api: api, bus: bus, source: source}
}

func (e *EventBridge) Publish(ctx context.Context, channel, event string, payload map[string]any) error {
	now := time.Now().UTC()
	detail, err := json.Marshal(Message{Channel: channel, Event: event, Payload: payload, SentAt: now})
	if err != nil {
		return fmt.Errorf("broadcast: marshal: %w", err)
	}
	entry := types.PutEventsRequestEntry{
		Source:     aws.String(e.source),
		DetailType: aws.String(event),
		Detail:     aws.String(string(detail)),
		Time:       aws.Time(now),
	}
	if e.bus != "" {
		entry.EventBusName = aws.String(e.bus)
	}
	out, err := e.api.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: []types.PutEventsRequestEntry{entry}})
	if err != nil {
		return fmt.Errorf("broadcast: put events: %w", err)
	}
	if out.FailedEntryCount > 0 {
		code, msg := "", ""
		if len(out.Entries) > 0 {
			code, msg = aws.ToString(out.Entries[0].ErrorCode), aws.ToString(out.Entries[0].ErrorMessage)
		}
		return fmt.Errorf("%w: %s %s", ErrEventRejected, code, msg)
	}
	return nil
}
