package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/safing/mibis/log"
	"github.com/safing/mibis/trng"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamPingInterval = 30 * time.Second
)

func allowAnyOrigin(r *http.Request) bool {
	return true
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     allowAnyOrigin,
	ReadBufferSize:  1024,
	WriteBufferSize: 65536,
}

// streamOutput sends every packed chunk of conditioned output as a binary
// message until the client goes away or the program shuts down.
func streamOutput(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		errMsg := fmt.Sprintf("could not upgrade to websocket: %s", err)
		log.Error(errMsg)
		// the upgrader already replied with an error
		return
	}
	defer func() {
		_ = wsConn.Close()
	}()

	sub := trng.Subscribe()
	defer func() {
		sub.Cancel()
		if dropped := sub.Dropped(); dropped > 0 {
			log.Infof("api: stream client %s missed %d chunks", r.RemoteAddr, dropped)
		}
	}()

	// read from the client to notice when it goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := wsConn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case chunk, ok := <-sub.C:
			if !ok {
				_ = wsConn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "conditioner stopped"),
					time.Now().Add(streamWriteTimeout),
				)
				return
			}
			_ = wsConn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := wsConn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				log.Debugf("api: failed to write to stream client %s: %s", r.RemoteAddr, err)
				return
			}
		case <-ping.C:
			if err := wsConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		case <-closed:
			return
		case <-module.Ctx.Done():
			return
		}
	}
}
