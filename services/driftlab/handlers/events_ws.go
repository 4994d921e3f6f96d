// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/AleutianDrift/services/driftlab/events"
	"github.com/AleutianAI/AleutianDrift/services/driftlab/experiment"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// ExperimentEvents upgrades to a websocket and streams the
// experiment's event channel. Buffered events after ?since=<seq> are
// replayed first, then live events follow in sequence order.
func ExperimentEvents(sup *experiment.Supervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := c.Param("uuid")
		emitter, err := sup.Emitter(uuid)
		if err != nil {
			writeDomainError(c, err)
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "experiment", uuid, "error", err)
			return
		}
		defer ws.Close()
		slog.Info("event stream client connected", "experiment", uuid)

		// Live events flow through a buffered channel; the replay of
		// missed events happens before the pump starts draining.
		live := make(chan events.Event, 256)
		subID := emitter.Subscribe(func(ev *events.Event) {
			select {
			case live <- *ev:
			default:
				// Slow consumer: drop rather than stall the worker.
			}
		})
		defer emitter.Unsubscribe(subID)

		var since uint64
		if raw := c.Query("since"); raw != "" {
			if parsed, perr := strconv.ParseUint(raw, 10, 64); perr == nil {
				since = parsed
			}
		}
		for _, ev := range emitter.BufferSince(since) {
			if err := ws.WriteJSON(ev); err != nil {
				return
			}
			since = ev.Sequence
		}

		// Reader goroutine just watches for the client going away.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case ev := <-live:
				if ev.Sequence <= since {
					continue // already replayed
				}
				if err := ws.WriteJSON(ev); err != nil {
					slog.Info("event stream client disconnected", "experiment", uuid)
					return
				}
			case <-done:
				return
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}
