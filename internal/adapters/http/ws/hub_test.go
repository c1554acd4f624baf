package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tally/internal/domain/model"
)

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func dial(srv *httptest.Server, channel string) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?channel=" + channel
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func TestHub(t *testing.T) {
	Convey("Given a hub behind an http server", t, func() {
		hub := NewHub()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = hub.Serve(w, r, r.URL.Query().Get("channel"))
		}))
		defer srv.Close()
		defer hub.Close()

		display := model.DisplayChannel("e1")
		conn, err := dial(srv, display)
		So(err, ShouldBeNil)
		defer conn.Close()
		So(eventually(func() bool { return hub.Count(display) == 1 }), ShouldBeTrue)

		Convey("When a notification targets the subscribed channel", func() {
			n := model.Notification{
				ID:       "n1",
				Name:     model.NotifyCeremonyReveal,
				EventID:  "e1",
				Channels: []string{display, model.EventChannel("e1")},
				At:       time.Now().UTC(),
				Payload:  map[string]any{"index": 1, "teamName": "Alpha"},
			}
			So(hub.Deliver(context.Background(), n), ShouldBeNil)

			Convey("Then the subscriber receives the envelope", func() {
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, data, err := conn.ReadMessage()
				So(err, ShouldBeNil)

				var got map[string]any
				So(json.Unmarshal(data, &got), ShouldBeNil)
				So(got["name"], ShouldEqual, "display:ceremony-reveal")
				So(got["eventId"], ShouldEqual, "e1")
				payload, ok := got["payload"].(map[string]any)
				So(ok, ShouldBeTrue)
				So(payload["teamName"], ShouldEqual, "Alpha")
			})
		})

		Convey("When a notification targets another channel", func() {
			n := model.Notification{ID: "n2", Name: model.NotifyScoreUpdated, Channels: []string{model.EventChannel("e2")}}
			So(hub.Deliver(context.Background(), n), ShouldBeNil)

			Convey("Then the subscriber receives nothing", func() {
				_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
				_, _, err := conn.ReadMessage()
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the subscriber disconnects", func() {
			So(conn.Close(), ShouldBeNil)

			Convey("Then it is unregistered", func() {
				So(eventually(func() bool { return hub.Count(display) == 0 }), ShouldBeTrue)
			})
		})

		Convey("When the hub is closed", func() {
			So(hub.Close(), ShouldBeNil)

			Convey("Then subscribers are dropped and new ones refused", func() {
				So(hub.Count(display), ShouldEqual, 0)
				late, err := dial(srv, display)
				if err == nil {
					defer late.Close()
				}
				So(hub.Count(display), ShouldEqual, 0)
			})
		})
	})
}
