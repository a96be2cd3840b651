package usecases

import (
	"fmt"
	"time"

	"revenda_bot/internal/entities"
)

const (
	politeWindow         = 24 * time.Hour
	interactiveWindow    = 24 * time.Hour
	DefaultModerateHours = 12
)

// Clock is the time source used by the services; tests inject a fixed one.
type Clock func() time.Time

// Decision is the answer of a cooldown check. Reason is empty when allowed.
type Decision struct {
	Allow  bool
	Reason string
}

var allow = Decision{Allow: true}

// CooldownWindow returns the minimum gap between two automated responses for a mode.
// Unknown modes get the polite window.
func CooldownWindow(mode entities.CooldownMode, hours int) time.Duration {
	switch mode {
	case entities.CooldownFree:
		return 0
	case entities.CooldownModerate:
		if hours <= 0 {
			hours = DefaultModerateHours
		}
		return time.Duration(hours) * time.Hour
	default:
		return politeWindow
	}
}

// CanRespond decides whether a seller rule may answer a contact now.
func CanRespond(last *time.Time, mode entities.CooldownMode, hours int, now time.Time) Decision {
	window := CooldownWindow(mode, hours)
	return checkWindow(last, window, now, string(mode))
}

// AdminCooldownWindow maps the admin mode to its window; unknown values mean always.
func AdminCooldownWindow(mode entities.AdminCooldownMode) time.Duration {
	switch mode {
	case entities.AdminCooldown6h:
		return 6 * time.Hour
	case entities.AdminCooldown12h:
		return 12 * time.Hour
	case entities.AdminCooldown24h:
		return 24 * time.Hour
	default:
		return 0
	}
}

// CanRespondAdmin is the admin tree variant of CanRespond.
func CanRespondAdmin(last *time.Time, mode entities.AdminCooldownMode, now time.Time) Decision {
	return checkWindow(last, AdminCooldownWindow(mode), now, string(mode))
}

// CanSendInteractive allows one buttons or list message per 24h per contact.
func CanSendInteractive(lastInteractive *time.Time, now time.Time) Decision {
	return checkWindow(lastInteractive, interactiveWindow, now, "interactive 24h")
}

func checkWindow(last *time.Time, window time.Duration, now time.Time, label string) Decision {
	if last == nil || window <= 0 {
		return allow
	}
	elapsed := now.Sub(*last)
	if elapsed >= window {
		return allow
	}
	return Decision{
		Reason: fmt.Sprintf("cooldown %s active, %s remaining", label, (window - elapsed).Truncate(time.Second)),
	}
}
