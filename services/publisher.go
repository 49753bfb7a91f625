package services

import (
	"log/slog"

	pubnub "github.com/pubnub/go"
)

// PubNubPublisher adapts the PubNub client to the Publisher interface so
// services and tests do not depend on the concrete SDK.
type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(pn *pubnub.PubNub) *PubNubPublisher {
	return &PubNubPublisher{pn: pn}
}

func (p *PubNubPublisher) Publish(channel string, message map[string]any) {
	if p.pn == nil {
		return
	}

	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	if err != nil {
		slog.Error("pubnub publish", "channel", channel, "error", err)
	}
}
