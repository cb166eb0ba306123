package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrActionNotSupported is returned when a plugin's manifest does not list
// the requested action.
var ErrActionNotSupported = errors.New("action not supported by plugin")

// Hook runs one plugin action for a stream of typing events.
type Hook struct {
	manager  *Manager
	executor *Executor
	plugin   string
	action   string
	config   json.RawMessage
}

// NewHook binds a plugin action. The plugin is looked up on every call so a
// rediscovery picks up changes.
func NewHook(m *Manager, e *Executor, pluginName, action string, config json.RawMessage) *Hook {
	return &Hook{
		manager:  m,
		executor: e,
		plugin:   pluginName,
		action:   action,
		config:   config,
	}
}

// String names the bound plugin action.
func (h *Hook) String() string {
	return h.plugin + "/" + h.action
}

// Run sends event and text to the plugin. A response with Success false is
// returned as an error carrying the plugin's message.
func (h *Hook) Run(ctx context.Context, event, text string) (*Response, error) {
	p, err := h.manager.Get(h.plugin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.plugin, err)
	}
	if !p.Supports(h.action) {
		return nil, fmt.Errorf("%s: %w", h, ErrActionNotSupported)
	}

	resp, err := h.executor.Execute(ctx, p, &Request{
		Action: h.action,
		Event:  event,
		Text:   text,
		Config: h.config,
	})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("%s failed: %s", h, resp.Error)
	}
	return resp, nil
}
