// Package types defines the shared data types used across the application.
package types

import "time"

// LinkMimeType is the placeholder content type recorded for a resource
// anchor that did not produce a file download. It signals "page link, not
// file" to the consumer.
const LinkMimeType = "text/html"

// AssignmentLink is a detail-page link discovered in the assignment list
// view. Identity is the URL; Text is the display text of the first
// occurrence.
type AssignmentLink struct {
	URL  string
	Text string
}

// Resource is one attachment or hyperlink found on an assignment detail
// page. Href is either a mirrored storage link (a real download occurred
// and was uploaded) or the anchor's raw href.
type Resource struct {
	Name     string `json:"name"`
	Href     string `json:"href"`
	MimeType string `json:"mimeType"`
}

// Assignment is the scrape result for one detail page. Fields that could
// not be found on the page are empty strings, never omitted.
type Assignment struct {
	Title       string     `json:"title"`
	Course      string     `json:"course"`
	Due         string     `json:"due"`
	DueAt       string     `json:"dueAt,omitempty"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Resources   []Resource `json:"resources"`
}

// ScrapeResult is the sole return value of one scrape invocation.
type ScrapeResult struct {
	ScrapedAt   time.Time    `json:"scrapedAt"`
	Assignments []Assignment `json:"assignments"`
}
