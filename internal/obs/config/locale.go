package config

import (
	"fmt"
	"os"
	"regexp"
)

// localePattern and timezonePattern are compiled once; every set_locale/
// set_timezone call runs against them before anything touches disk or an
// agent connection.
var (
	localePattern   = regexp.MustCompile(`^(?:C|POSIX|[a-z]{2}(?:_[A-Z]{2})?(?:@[a-zA-Z0-9]+)?)(?:\.[-a-zA-Z0-9]+)?$`)
	timezonePattern = regexp.MustCompile(`^[A-Z][-+a-zA-Z0-9]*(?:/[A-Z][-+a-zA-Z0-9_]*)*$`)
)

// ValidLocale reports whether s matches the locale grammar (glibc-style
// LANG values: "C", "POSIX", "en_US", "en_US.UTF-8", "en_US@euro", ...).
func ValidLocale(s string) bool {
	return localePattern.MatchString(s)
}

// ValidTimezone reports whether s matches the IANA-style timezone grammar
// ("Europe/Helsinki", "UTC", "America/Argentina/Buenos_Aires").
func ValidTimezone(s string) bool {
	return timezonePattern.MatchString(s)
}

// WriteLocaleFile persists locale as a "LANG=<value>\n" line, matching the
// systemd-locale.conf convention.
func WriteLocaleFile(path, locale string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("LANG=%s\n", locale)), 0o644)
}

// WriteTimezoneFile persists timezone as a bare value, matching
// /etc/timezone's convention.
func WriteTimezoneFile(path, timezone string) error {
	return os.WriteFile(path, []byte(timezone+"\n"), 0o644)
}
