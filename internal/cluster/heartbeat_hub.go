// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package cluster

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MohaMehrzad/aios-core/internal/logging"
)

// heartbeatFrame is the push payload a remote node sends over its
// /cluster/heartbeat connection: its current load telemetry.
type heartbeatFrame struct {
	NodeID      string  `json:"node_id"`
	CPUPercent  float64 `json:"cpu_pct"`
	MemPercent  float64 `json:"mem_pct"`
	ActiveTasks uint32  `json:"active_tasks"`
}

const (
	heartbeatReadLimit = 64 * 1024
	heartbeatPongWait  = 60 * time.Second
	heartbeatPingEvery = (heartbeatPongWait * 9) / 10
)

// HeartbeatHub upgrades inbound node connections to websockets and feeds
// their pushed load telemetry into a Manager, replacing one-shot
// heartbeat polling with a persistent push channel. Adapted from the
// teacher's internal/websocket Hub/Client pair: where that hub
// broadcasts chat-style messages out to many subscribers, this hub only
// reads inbound frames from each peer and has no broadcast path.
type HeartbeatHub struct {
	manager  *Manager
	upgrader websocket.Upgrader
}

// NewHeartbeatHub creates a hub that feeds heartbeats into manager.
func NewHeartbeatHub(manager *Manager) *HeartbeatHub {
	return &HeartbeatHub{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and reads heartbeat frames until the
// peer disconnects, the read deadline lapses, or the server is
// shutting down. It never writes to the peer beyond protocol-level
// pings, matching the teacher's readPump shape.
func (h *HeartbeatHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("cluster heartbeat: websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(heartbeatReadLimit)
	if err := conn.SetReadDeadline(time.Now().Add(heartbeatPongWait)); err != nil {
		logging.Error().Err(err).Msg("cluster heartbeat: failed to set read deadline")
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(heartbeatPongWait))
	})

	stopPing := h.startPinger(conn)
	defer stopPing()

	for {
		var frame heartbeatFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Msg("cluster heartbeat: unexpected close")
			}
			return
		}
		if frame.NodeID == "" {
			continue
		}
		h.manager.Heartbeat(frame.NodeID, frame.CPUPercent, frame.MemPercent, frame.ActiveTasks)
	}
}

// startPinger keeps the connection alive with protocol pings on the
// same cadence as the teacher's writePump, returning a stop func.
func (h *HeartbeatHub) startPinger(conn *websocket.Conn) func() {
	ticker := time.NewTicker(heartbeatPingEvery)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		ticker.Stop()
		close(done)
	}
}
