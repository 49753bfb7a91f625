package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyService_CollapsesBurst(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifyService(pub, 30*time.Millisecond)
	defer n.Stop()

	for i := 0; i < 10; i++ {
		n.Notify("org_1", "evt_1")
	}

	time.Sleep(100 * time.Millisecond)

	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "organizer-org_1", msgs[0].channel)
	assert.Equal(t, "checkin_update", msgs[0].message["type"])
	assert.Equal(t, "evt_1", msgs[0].message["event_id"])
}

func TestNotifyService_SeparateEventsSeparatePublishes(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifyService(pub, 20*time.Millisecond)
	defer n.Stop()

	n.Notify("org_1", "evt_1")
	n.Notify("org_1", "evt_2")
	n.Notify("org_2", "evt_1")

	time.Sleep(80 * time.Millisecond)

	msgs := pub.messages()
	assert.Len(t, msgs, 3)
}

func TestNotifyService_FiresAgainAfterWindow(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifyService(pub, 10*time.Millisecond)
	defer n.Stop()

	n.Notify("org_1", "evt_1")
	time.Sleep(40 * time.Millisecond)
	n.Notify("org_1", "evt_1")
	time.Sleep(40 * time.Millisecond)

	assert.Len(t, pub.messages(), 2)
}

func TestNotifyService_StopCancelsPending(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNotifyService(pub, 20*time.Millisecond)

	for i := 0; i < 5; i++ {
		n.Notify("org_1", fmt.Sprintf("evt_%d", i))
	}
	n.Stop()

	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, pub.messages())
}
