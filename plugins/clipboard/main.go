// Package main provides a clipboard plugin for macOS.
// It copies the committed text with pbcopy or posts it as a notification.
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

// actionHandler defines a function type for handling specific actions.
type actionHandler func(text string) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"copy":   copyText,
	"notify": notify,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		writeErrorResponse("text is required")
		return
	}

	if err := handler(req.Text); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
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

// copyText places text on the general pasteboard.
func copyText(text string) error {
	cmd := exec.Command("pbcopy")
	cmd.Stdin = strings.NewReader(text)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// notify shows text in a Notification Center banner.
func notify(text string) error {
	script := fmt.Sprintf(`display notification "%s" with title "Mudra"`, escapeAppleScript(text))
	return runAppleScript(script)
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
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
