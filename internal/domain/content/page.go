package content

import (
	"regexp"
	"strings"
	"time"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Page is a published content page addressed by slug.
type Page struct {
	entity.Base

	Slug        string     `db:"slug" json:"slug"`
	Title       string     `db:"title" json:"title"`
	Body        string     `db:"body" json:"body"`
	Published   bool       `db:"published" json:"published"`
	PublishedAt *time.Time `db:"published_at" json:"publishedAt,omitempty"`
}

// Publish marks the page as published now.
func (p *Page) Publish() {
	now := time.Now().UTC()
	p.Published = true
	p.PublishedAt = &now
}

// Unpublish withdraws the page.
func (p *Page) Unpublish() {
	p.Published = false
	p.PublishedAt = nil
}

// Validate checks page invariants.
func (p *Page) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return apperror.NewValidation("page title is required").WithDetail("field", "title")
	}
	if !slugPattern.MatchString(p.Slug) {
		return apperror.NewValidation("page slug must be lowercase alphanumeric with dashes").
			WithDetail("field", "slug").
			WithDetail("slug", p.Slug)
	}
	return nil
}
