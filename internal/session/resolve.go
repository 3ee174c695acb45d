package session

import "github.com/mpontes/nudge/internal/config"

// DefaultSessionName is used when neither the flag nor the config names one.
const DefaultSessionName = "main"

func resolveFrom(flagOverride, configured string) string {
	switch {
	case flagOverride != "":
		return flagOverride
	case configured != "":
		return configured
	default:
		return DefaultSessionName
	}
}

// Resolve picks the active session name: an explicit --session flag wins,
// then the config file's default_session, then "main". A missing or
// broken config file falls through to the default here; the daemon
// surfaces config errors itself when it loads settings for real.
func Resolve(flagOverride string) string {
	var configured string
	if cfg, err := config.Load(ConfigPath()); err == nil {
		configured = cfg.DefaultSession
	}
	return resolveFrom(flagOverride, configured)
}
