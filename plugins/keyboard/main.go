// Package main provides a keyboard plugin for macOS.
// It types the committed text into the focused application via AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Text   string          `json:"text"`
	Config json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TypeConfig controls the type action.
type TypeConfig struct {
	Submit bool `json:"submit"` // press return after the text
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "type":
		if err := handleType(req.Text, req.Config); err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	writeSuccessResponse()
}

func handleType(text string, config json.RawMessage) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text is required")
	}

	var cfg TypeConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	return runAppleScript(buildTypeScript(text, cfg.Submit))
}

// buildTypeScript generates an AppleScript that types text and optionally
// presses return.
func buildTypeScript(text string, submit bool) string {
	script := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escapeAppleScript(text))
	if submit {
		script += "\n" + `tell application "System Events" to key code 36`
	}
	return script
}

// escapeAppleScript quotes backslashes and double quotes for a string literal.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
