package markdown

import "strings"

// Characters that must be backslash-escaped in MarkdownV2 text.
// See https://core.telegram.org/bots/api#markdownv2-style.
const specialChars = "_*[]()~`>#+-=|{}.!"

// EscapeV2 escapes input so it renders literally inside a MarkdownV2
// message.
func EscapeV2(input string) string {
	escaped := 0
	for i := range input {
		if strings.IndexByte(specialChars, input[i]) >= 0 {
			escaped++
		}
	}
	if escaped == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + escaped)

	for i := range input {
		if strings.IndexByte(specialChars, input[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(input[i])
	}

	return b.String()
}
