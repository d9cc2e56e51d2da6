package bridge

import (
	"regexp"
	"strings"
)

var jsEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// validEvent restricts event names to dotted identifiers so they can be
// inlined after "window.".
var validEvent = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// EscapeJS escapes s for a single-quoted script string literal.
func EscapeJS(s string) string {
	return jsEscaper.Replace(s)
}

// ValidEventName reports whether name can be used with FormatEvent.
func ValidEventName(name string) bool {
	return validEvent.MatchString(name)
}

// FormatEvent renders the script that delivers payload to window.<name>
// when that handler exists.
func FormatEvent(name, payload string) string {
	escaped := EscapeJS(payload)
	return "if(window." + name + "){window." + name + "('" + escaped + "');}"
}
