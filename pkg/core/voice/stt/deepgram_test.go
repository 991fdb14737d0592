package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const resultFrame = `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello"}]}}`

// startResultsServer serves a websocket that emits the given number of
// Results frames and then holds the connection open until the client
// closes it.
func startResultsServer(t *testing.T, frames int) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < frames; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(resultFrame)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDeepgramStreamDeliversResults(t *testing.T) {
	p := NewDeepgramWithURL("key", startResultsServer(t, 3))
	stream, err := p.Connect(context.Background(), StreamOptions{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer stream.Close()

	for i := 0; i < 3; i++ {
		select {
		case ev := <-stream.Events():
			if ev.Text != "hello" || !ev.IsFinal {
				t.Fatalf("unexpected event %+v", ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no event received")
		}
	}
}

func TestDeepgramCloseUnblocksFullBuffer(t *testing.T) {
	p := NewDeepgramWithURL("key", startResultsServer(t, 150))
	stream, err := p.Connect(context.Background(), StreamOptions{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	ds := stream.(*deepgramStream)

	// Never drain events. Once the buffer fills, the read loop is
	// parked on the channel send; Close must still get it to exit.
	deadline := time.Now().Add(2 * time.Second)
	for len(ds.events) < cap(ds.events) {
		if time.Now().After(deadline) {
			t.Fatalf("events buffer never filled, len=%d", len(ds.events))
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case <-ds.done:
	case <-time.After(2 * time.Second):
		t.Fatal("read loop still running after close")
	}
}
