package api

import (
	"encoding/json"
	"testing"
)

func newBufferedClient(h *Hub) *wsClient {
	c := &wsClient{
		hub:  h,
		send: make(chan []byte, wsSendBuffer),
		id:   "test",
		subs: make(map[string]struct{}),
	}
	h.attach(c)
	return c
}

func TestHubPublishRespectsSubscriptions(t *testing.T) {
	h := NewHub()
	firehose := newBufferedClient(h)
	mine := newBufferedClient(h)
	other := newBufferedClient(h)

	firehose.apply(WSSubscribeRequest{Op: "subscribe", Channels: []string{FirehoseChannel}})
	mine.apply(WSSubscribeRequest{Op: "subscribe", Channels: []string{DebtorChannel("0xd1")}})
	other.apply(WSSubscribeRequest{Op: "subscribe", Channels: []string{DebtorChannel("0xd2")}})

	h.Publish(OrderUpdate{Type: "order", Event: "submitted", Debtor: "0xd1"})

	for name, c := range map[string]*wsClient{"firehose": firehose, "debtor": mine} {
		select {
		case raw := <-c.send:
			var update OrderUpdate
			if err := json.Unmarshal(raw, &update); err != nil {
				t.Fatalf("%s: decode: %v", name, err)
			}
			if update.Event != "submitted" || update.Debtor != "0xd1" {
				t.Errorf("%s received %+v", name, update)
			}
		default:
			t.Errorf("%s subscriber received nothing", name)
		}
	}

	select {
	case <-other.send:
		t.Error("foreign debtor channel received the update")
	default:
	}
}

func TestHubUnsubscribeAndDetach(t *testing.T) {
	h := NewHub()
	c := newBufferedClient(h)
	c.apply(WSSubscribeRequest{Op: "subscribe", Channels: []string{FirehoseChannel}})
	c.apply(WSSubscribeRequest{Op: "unsubscribe", Channels: []string{FirehoseChannel}})

	h.Publish(OrderUpdate{Type: "order", Event: "submitted", Debtor: "0xd1"})
	select {
	case <-c.send:
		t.Error("unsubscribed client received the update")
	default:
	}

	h.detach(c)
	if _, ok := <-c.send; ok {
		t.Error("detach did not close the send channel")
	}
	// A second detach of the same client is a no-op.
	h.detach(c)
}
