package news

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core"
)

type News struct {
	ID          string      `json:"id" db:"id"`
	Title       string      `json:"title" db:"title"`
	Slug        string      `json:"slug" db:"slug"`
	Body        string      `json:"body" db:"body"`
	IsPublished bool        `json:"is_published" db:"is_published"`
	PublishedAt null.Time   `json:"published_at" db:"published_at"`
	AuthorID    null.String `json:"author_id" db:"author_id"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

type NewNews struct {
	Title       string `json:"title" validate:"required,max=200"`
	Body        string `json:"body" validate:"required"`
	IsPublished bool   `json:"is_published"`
}

func (nn *NewNews) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Body = strings.TrimSpace(nn.Body)
	return validate.Struct(nn)
}

type QueryFilter struct {
	Search string `query:"search"`
	// PublishedOnly hides drafts; always set for anonymous readers.
	PublishedOnly bool `query:"-"`
	Limit         int  `query:"limit"`
	Offset        int  `query:"offset"`
}

func (f *QueryFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
	if f.Limit <= 0 || f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

const maxLimit = 50

var (
	nonSlugRegex = regexp.MustCompile(`[^a-z0-9]+`)
	slugMaxLen   = 80
)

// Slugify lowers s and joins its alphanumeric runs with dashes: "Hari Kartini 2024!" -> "hari-kartini-2024".
func Slugify(s string) string {
	slug := strings.Trim(nonSlugRegex.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > slugMaxLen {
		slug = strings.TrimRight(slug[:slugMaxLen], "-")
	}
	if slug == "" {
		slug = "news"
	}
	return slug
}
