package channels

import "strings"

// channelPrefix marks channels managed by towncrier as Gas Town channels.
const channelPrefix = "gt-"

// Sanitize converts a rig name into a valid Discord channel name:
// lowercase, spaces become hyphens, anything outside [a-z0-9_-] is dropped,
// and the result carries the "gt-" prefix.
//
// Sanitize is idempotent: a name that already carries the prefix is not
// prefixed again, so Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(rig string) string {
	name := strings.ToLower(rig)
	name = strings.ReplaceAll(name, " ", "-")

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	name = b.String()

	if strings.HasPrefix(name, channelPrefix) {
		return name
	}
	return channelPrefix + name
}
