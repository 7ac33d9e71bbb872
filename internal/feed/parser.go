package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Channel is a parsed feed document: a title and its items in document
// order.
type Channel struct {
	Title string
	Items []Item
}

// Item is a single feed entry. Optional fields are empty strings when the
// document omits them. PubDate keeps the publish date exactly as it appears
// in the document; interpreting it is left to the caller.
type Item struct {
	Title       string
	Link        string
	Description string
	PubDate     string
}

type Parser struct {
	lib *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{lib: gofeed.NewParser()}
}

// Parse converts a raw feed document into a Channel. A document without a
// recognizable feed structure is a parse error; items with missing optional
// fields are kept with those fields empty.
func (p *Parser) Parse(_ context.Context, document string) (*Channel, error) {
	parsed, err := p.lib.ParseString(document)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	channel := &Channel{
		Title: strings.TrimSpace(parsed.Title),
		Items: make([]Item, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		pubDate := strings.TrimSpace(item.Published)
		if pubDate == "" {
			pubDate = strings.TrimSpace(item.Updated)
		}

		channel.Items = append(channel.Items, Item{
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: item.Description,
			PubDate:     pubDate,
		})
	}

	return channel, nil
}
