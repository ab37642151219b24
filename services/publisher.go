package services

import (
	"fmt"
	"log"

	pubnub "github.com/pubnub/go"
)

// EventPublisher pushes purchase lifecycle events to the confirmation page.
// Publishing is best-effort everywhere; the flow never depends on it.
type EventPublisher interface {
	PublishPurchaseEvent(reference string, event map[string]any)
}

// PubNubPublisher publishes to a per-purchase PubNub channel.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(pn *pubnub.PubNub) *PubNubPublisher {
	return &PubNubPublisher{pn: pn}
}

func (p *PubNubPublisher) PublishPurchaseEvent(reference string, event map[string]any) {
	channel := fmt.Sprintf("purchase-%s", reference)
	if _, status, err := p.pn.Publish().
		Channel(channel).
		Message(event).
		Execute(); err != nil {
		log.Printf("publish to %s failed (%d): %v", channel, status.StatusCode, err)
	}
}

// NopPublisher drops events; used when PubNub is not configured.
type NopPublisher struct{}

func (NopPublisher) PublishPurchaseEvent(string, map[string]any) {}
