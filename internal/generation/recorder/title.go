package recorder

import "strings"

const (
	titleMaxLen      = 50
	titleTruncateLen = 47
	titleFallback    = "New conversation"
)

// DeriveTitle builds a conversation title from the first user message:
// a leading fenced-code marker is stripped, then the text is cut to 50
// characters, or 47 plus an ellipsis when longer.
func DeriveTitle(firstUserMessage string) string {
	text := strings.TrimSpace(firstUserMessage)
	if strings.HasPrefix(text, "```") {
		// Drop the opening fence with its info string ("```python").
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = ""
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return titleFallback
	}
	if len(runes) <= titleMaxLen {
		return string(runes)
	}
	return string(runes[:titleTruncateLen]) + "..."
}
