package session

import (
	"fmt"
	"regexp"
)

// A session name becomes a directory component under ~/.nudge/sessions,
// so it is restricted to a conservative slug alphabet.
var validName = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName rejects names that cannot safely name a session directory.
func ValidateName(name string) error {
	if validName.MatchString(name) {
		return nil
	}
	return fmt.Errorf("session name %q: use 1-64 characters from a-z, 0-9, '-', '_'", name)
}
