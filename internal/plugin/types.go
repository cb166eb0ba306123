// Package plugin discovers commit-action plugins and runs them as
// subprocesses speaking JSON over stdin and stdout.
package plugin

import (
	"encoding/json"
	"slices"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Request is written to a plugin's stdin. Event names the edit event that
// triggered it and Text is the typed text at that moment.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Text   string          `json:"text"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Supports reports whether the manifest lists action. A manifest without
// actions accepts any.
func (p *Plugin) Supports(action string) bool {
	if len(p.Manifest.Actions) == 0 {
		return true
	}
	return slices.Contains(p.Manifest.Actions, action)
}
