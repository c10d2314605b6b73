// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/MohaMehrzad/aios-core/internal/logging"
	"github.com/MohaMehrzad/aios-core/internal/metrics"
	"github.com/MohaMehrzad/aios-core/internal/registry"
)

// triggerFiredSubject is the NATS subject trigger firings are published
// on; the dispatcher both publishes and subscribes to it so any
// in-process listener (including itself) observes every firing.
const triggerFiredSubject = "plugins.trigger.fired"

// firedEvent is the payload published to triggerFiredSubject.
type firedEvent struct {
	TriggerID  string `json:"trigger_id"`
	PluginName string `json:"plugin_name"`
	FiredAt    int64  `json:"fired_at"`
}

// EventDispatcher periodically evaluates registered triggers and, for
// each one that fires, publishes a firedEvent and invokes the linked
// plugin through the same registry.Dispatcher.Execute path any other
// tool call uses.
type EventDispatcher struct {
	mu       sync.RWMutex
	triggers map[string]*Trigger

	conn       *nats.Conn
	sub        *nats.Subscription
	dispatcher *registry.Dispatcher
	agentID    string
	interval   time.Duration
}

// NewEventDispatcher connects to the embedded NATS server at clientURL
// and wires a subscription that invokes dispatcher for every trigger
// firing published on triggerFiredSubject.
func NewEventDispatcher(clientURL string, dispatcher *registry.Dispatcher) (*EventDispatcher, error) {
	conn, err := nats.Connect(clientURL)
	if err != nil {
		return nil, fmt.Errorf("plugin: connect to embedded NATS server: %w", err)
	}

	d := &EventDispatcher{
		triggers:   make(map[string]*Trigger),
		conn:       conn,
		dispatcher: dispatcher,
		agentID:    "plugin-event-dispatcher",
		interval:   5 * time.Second,
	}

	sub, err := conn.Subscribe(triggerFiredSubject, d.handleFired)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("plugin: subscribe to %s: %w", triggerFiredSubject, err)
	}
	d.sub = sub
	return d, nil
}

// RegisterTrigger adds or replaces a trigger by ID.
func (d *EventDispatcher) RegisterTrigger(t Trigger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.triggers[t.ID] = &t
}

// RemoveTrigger deletes a trigger by ID.
func (d *EventDispatcher) RemoveTrigger(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.triggers, id)
}

// ListTriggers returns every registered trigger.
func (d *EventDispatcher) ListTriggers() []Trigger {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Trigger, 0, len(d.triggers))
	for _, t := range d.triggers {
		out = append(out, *t)
	}
	return out
}

// handleFired is the NATS subscription callback: decodes the firedEvent
// and dispatches the linked plugin tool via the shared dispatcher.
func (d *EventDispatcher) handleFired(msg *nats.Msg) {
	var ev firedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logging.Warn().Err(err).Msg("plugin trigger event decode failed")
		return
	}

	toolName := "plugin." + ev.PluginName

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := d.dispatcher.Execute(ctx, registry.ExecuteRequest{
		AgentID:  d.agentID,
		ToolName: toolName,
		Action:   fmt.Sprintf("triggered by %s", ev.TriggerID),
	}); err != nil {
		logging.Warn().Err(err).Str("tool_name", toolName).Str("trigger_id", ev.TriggerID).
			Msg("triggered plugin execution failed")
	}
}

// checkOnce evaluates every enabled trigger once and publishes a
// firedEvent for each that fires.
func (d *EventDispatcher) checkOnce(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.triggers {
		if !t.Enabled {
			continue
		}
		fired := false
		switch t.Kind {
		case TriggerCron:
			fired = CheckCron(t.Expression, now)
		case TriggerFileWatch:
			fired = CheckFileWatch(t.Path, t.lastChecked)
			t.lastChecked = now.Unix()
		case TriggerLogPattern:
			fired, t.logOffset = TailLogPattern(t.Path, t.Pattern, t.logOffset)
		case TriggerMetricThreshold:
			if value, ok := metrics.SampleGauge(t.Metric); ok {
				fired = CheckMetricThreshold(value, t.Operator, t.Threshold)
			}
		}
		if !fired {
			continue
		}
		t.LastFired = now.Unix()
		metrics.PluginTriggerFired.WithLabelValues(string(t.Kind), t.PluginName).Inc()

		payload, err := json.Marshal(firedEvent{TriggerID: t.ID, PluginName: t.PluginName, FiredAt: now.Unix()})
		if err != nil {
			logging.Warn().Err(err).Msg("plugin trigger event marshal failed")
			continue
		}
		if err := d.conn.Publish(triggerFiredSubject, payload); err != nil {
			logging.Warn().Err(err).Str("trigger_id", t.ID).Msg("failed to publish plugin trigger firing")
		}
	}
}

// Serve implements suture.Service: evaluates triggers every interval
// until ctx is cancelled.
func (d *EventDispatcher) Serve(ctx context.Context) error {
	logging.Info().Msg("plugin event dispatcher started")
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("plugin event dispatcher shutting down")
			return ctx.Err()
		case <-ticker.C:
			count := len(d.ListTriggers())
			if count > 0 {
				logging.Debug().Int("trigger_count", count).Msg("checking plugin triggers")
			}
			d.checkOnce(time.Now())
		}
	}
}

// String implements fmt.Stringer so suture can name this service in logs.
func (d *EventDispatcher) String() string {
	return "plugin-event-dispatcher"
}

// Close unsubscribes and closes the NATS connection.
func (d *EventDispatcher) Close() error {
	if d.sub != nil {
		_ = d.sub.Unsubscribe()
	}
	d.conn.Close()
	return nil
}
