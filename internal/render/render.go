// Package render formats feed posts as Telegram messages.
package render

import (
	"strings"

	"github.com/trustmaster/telerss/internal/markdown"
	"github.com/trustmaster/telerss/internal/models"
)

const pubDateLayout = "2006-01-02 15:04"

// Post renders a post in a compact MarkdownV2 format. The message carries
// the link to the full post, so only the bold "feed: title" header, the
// link and the publish time are included:
//
//	*{feedTitle}: {post.Title}*
//	{post.Link}
//	{post.PubDate in YYYY-MM-DD HH:mm}
func Post(post models.Post, feedTitle string) string {
	var b strings.Builder

	b.WriteString("*")
	b.WriteString(markdown.EscapeV2(feedTitle))
	b.WriteString(": ")
	b.WriteString(markdown.EscapeV2(post.Title))
	b.WriteString("*\n")
	b.WriteString(markdown.EscapeV2(post.Link))
	b.WriteString("\n")
	b.WriteString(markdown.EscapeV2(post.PubDate.UTC().Format(pubDateLayout)))

	return b.String()
}
