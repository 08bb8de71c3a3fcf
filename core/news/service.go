package news

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("news not found")

	NowFunc = time.Now // mockable
)

// maxSlugAttempts bounds the numeric suffixes tried for a taken slug.
const maxSlugAttempts = 100

type (
	Repository interface {
		CreateNews(ctx context.Context, n News) (News, error)
		GetNewsByID(ctx context.Context, id string) (News, error)
		GetNewsBySlug(ctx context.Context, slug string) (News, error)
		SlugExists(ctx context.Context, slug, excludedID string) (bool, error)
		FilterNews(ctx context.Context, filter QueryFilter) ([]News, error)
		UpdateNews(ctx context.Context, n News) (News, error)
		DeleteNews(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, author user.User, nn NewNews) (News, error)
		GetByID(ctx context.Context, id string) (News, error)
		// GetBySlug returns published news only, unless drafts is set.
		GetBySlug(ctx context.Context, slug string, drafts bool) (News, error)
		Query(ctx context.Context, filter *QueryFilter) ([]News, error)
		Update(ctx context.Context, n News, nn NewNews) (News, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// uniqueSlug derives a slug from title, suffixing -2, -3... while it is taken by another post.
func (svc *service) uniqueSlug(ctx context.Context, title, excludedID string) (string, error) {
	base := Slugify(title)
	slug := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		exists, err := svc.repo.SlugExists(ctx, slug, excludedID)
		if err != nil {
			return "", errors.Wrap(err, "checking slug")
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + strconv.Itoa(i)
	}
	return "", errors.Errorf("no free slug for %q", base)
}

func publish(n *News, published bool, now time.Time) {
	if published && !n.IsPublished {
		n.PublishedAt = null.TimeFrom(now)
	} else if !published {
		n.PublishedAt = null.Time{}
	}
	n.IsPublished = published
}

func (svc *service) Create(ctx context.Context, author user.User, nn NewNews) (News, error) {
	slug, err := svc.uniqueSlug(ctx, nn.Title, "")
	if err != nil {
		return News{}, err
	}
	now := NowFunc().UTC()
	n := News{
		Title:     nn.Title,
		Slug:      slug,
		Body:      nn.Body,
		AuthorID:  null.NewString(author.ID, author.ID != ""),
		CreatedAt: now,
		UpdatedAt: now,
	}
	publish(&n, nn.IsPublished, now)
	return svc.repo.CreateNews(ctx, n)
}

func (svc *service) GetByID(ctx context.Context, id string) (News, error) {
	return svc.repo.GetNewsByID(ctx, id)
}

func (svc *service) GetBySlug(ctx context.Context, slug string, drafts bool) (News, error) {
	n, err := svc.repo.GetNewsBySlug(ctx, slug)
	if err != nil {
		return News{}, err
	}
	if !n.IsPublished && !drafts {
		return News{}, ErrNotFound
	}
	return n, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]News, error) {
	if filter == nil {
		filter = &QueryFilter{}
	}
	filter.Clean()
	return svc.repo.FilterNews(ctx, *filter)
}

func (svc *service) Update(ctx context.Context, n News, nn NewNews) (News, error) {
	if nn.Title != n.Title {
		slug, err := svc.uniqueSlug(ctx, nn.Title, n.ID)
		if err != nil {
			return News{}, err
		}
		n.Slug = slug
	}
	now := NowFunc().UTC()
	n.Title = nn.Title
	n.Body = nn.Body
	n.UpdatedAt = now
	publish(&n, nn.IsPublished, now)
	return svc.repo.UpdateNews(ctx, n)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteNews(ctx, id)
}
