package notify

// MaxDescriptionLen is the Discord embed description limit.
// Longer descriptions are truncated, never wrapped.
const MaxDescriptionLen = 4096

// Embed is the structured rich message produced by the formatter,
// ready for rendering by any chat transport. Field names follow the
// Discord embed wire format.
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Color       int     `json:"color"`
	Fields      []Field `json:"fields,omitempty"`
	Timestamp   string  `json:"timestamp"`
	Footer      *Footer `json:"footer,omitempty"`
}

// Field is a single name/value entry in an embed.
// Ordering within Embed.Fields is significant and fixed per event kind.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is the optional embed footer.
type Footer struct {
	Text string `json:"text"`
}

// truncate cuts s at MaxDescriptionLen runes. Absent and empty inputs
// pass through unchanged.
func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxDescriptionLen {
		return s
	}
	return string(runes[:MaxDescriptionLen])
}
