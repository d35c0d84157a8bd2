package onboarding

import "strings"

// Platform is the device classification derived from user-agent signals.
// Computed once per session, never stored.
type Platform string

const (
	// PlatformAndroidChrome is the one platform with a programmatic
	// install prompt.
	PlatformAndroidChrome Platform = "android-chrome"
	PlatformIOSSafari     Platform = "ios-safari"
	PlatformDesktop       Platform = "desktop"
	PlatformUnknown       Platform = "unknown"
)

// Classify derives the platform from a user-agent string.
func Classify(userAgent string) Platform {
	ua := strings.ToLower(userAgent)

	if strings.Contains(ua, "android") {
		if strings.Contains(ua, "chrome") && !strings.Contains(ua, "firefox") {
			return PlatformAndroidChrome
		}
		return PlatformUnknown
	}

	if strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") {
		// Chrome and Firefox on iOS identify as CriOS/FxiOS.
		if strings.Contains(ua, "safari") && !strings.Contains(ua, "crios") && !strings.Contains(ua, "fxios") {
			return PlatformIOSSafari
		}
		return PlatformUnknown
	}

	if strings.Contains(ua, "windows") || strings.Contains(ua, "macintosh") ||
		strings.Contains(ua, "x11") || strings.Contains(ua, "linux") {
		return PlatformDesktop
	}

	return PlatformUnknown
}
