package outbox

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DeliveryError wraps a backend failure with the contact it concerned.
type DeliveryError struct {
	Contact string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Contact, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// The script takes the contact and body as run arguments, which keeps
// message content out of AppleScript source entirely.
const sendScript = `on run {target, body}
	tell application "Messages"
		set svc to 1st account whose service type = iMessage
		send body to participant target of svc
	end tell
end run`

// AppleScriptSender delivers through the local Messages app via
// osascript. It only works on a macOS session where Messages is signed
// in.
type AppleScriptSender struct {
	// Timeout bounds one osascript invocation. Messages can hang waiting
	// for a first-run permission prompt.
	Timeout time.Duration
}

// NewAppleScriptSender returns a sender with a 15s per-send timeout.
func NewAppleScriptSender() *AppleScriptSender {
	return &AppleScriptSender{Timeout: 15 * time.Second}
}

// Send delivers text to contact through Messages.
func (a *AppleScriptSender) Send(ctx context.Context, contact, text string) error {
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "osascript", "-e", sendScript, contact, text)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &DeliveryError{Contact: contact, Err: err}
	}
	return nil
}
