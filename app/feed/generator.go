package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/gh-digest/app/database"
)

type Generator struct {
	baseURL string
	version string
}

func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

// Run renders a target's activities as RSS 2.0. Translated text replaces the original
// when a translation has completed.
func (g *Generator) Run(channel Channel, activities []database.Activity) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(channel.Title, channel.Name), 4)
	g.writeElement(&buf, "link", channel.Link, 4)
	description := channel.Description
	if description == "" {
		description = fmt.Sprintf("Activity digest for %s", cmp.Or(channel.Title, channel.Name))
	}
	g.writeElement(&buf, "description", description, 4)

	selfLink := fmt.Sprintf("%s/feeds/%s", g.baseURL, channel.Name)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	lastBuildDate := time.Now()
	if len(activities) > 0 {
		lastBuildDate = cmp.Or(activities[0].CreatedAt, lastBuildDate)
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("gh-digest/%s", g.version), 4)
	if channel.Language != "" {
		g.writeElement(&buf, "language", channel.Language, 4)
	}

	for _, activity := range activities {
		g.writeItem(&buf, activity)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, activity database.Activity) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(fmt.Sprintf("%s:%s:%s", activity.TargetID, activity.Kind, activity.ExternalEventID)))
	buf.WriteString("</guid>\n")

	title := activity.Title
	if activity.TranslationStatus == database.TranslationStatusCompleted && activity.TranslatedTitle != nil && *activity.TranslatedTitle != "" {
		title = *activity.TranslatedTitle
	}
	g.writeElement(buf, "title", title, 6)

	if activity.URL != "" {
		g.writeElement(buf, "link", activity.URL, 6)
	}

	body := activity.Body
	description := ""
	if activity.TranslationStatus == database.TranslationStatusCompleted {
		if activity.TranslatedBody != nil && *activity.TranslatedBody != "" {
			body = *activity.TranslatedBody
		}
		if activity.Summary != nil {
			description = *activity.Summary
		}
	}
	g.writeElement(buf, "description", cmp.Or(description, truncate(body, 500), "No description available"), 6)

	if body != "" && body != description {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(strings.ReplaceAll(body, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	g.writeElement(buf, "pubDate", activity.CreatedAt.Format(time.RFC1123Z), 6)
	g.writeElement(buf, "author", activity.Author, 6)
	g.writeElement(buf, "category", string(activity.Kind), 6)
	if activity.Version != nil {
		g.writeElement(buf, "category", *activity.Version, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
