package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/news"
)

const newsColumns = "id, title, slug, body, is_published, published_at, author_id, created_at, updated_at"

type newsRepository struct {
	exec core.DBExecutor
}

var _ news.Repository = (*newsRepository)(nil) // interface compliance check

func NewNewsRepository(exec core.DBExecutor) *newsRepository {
	return &newsRepository{exec: exec}
}

func stampNews(n *news.News) {
	n.CreatedAt = stamp(n.CreatedAt)
	n.UpdatedAt = stamp(n.UpdatedAt)
	if n.PublishedAt.Valid {
		n.PublishedAt.Time = stamp(n.PublishedAt.Time)
	}
}

func (repo *newsRepository) CreateNews(ctx context.Context, n news.News) (news.News, error) {
	n.ID = uuid.New().String()
	stampNews(&n)
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO news ("+newsColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		n.ID, n.Title, n.Slug, n.Body, n.IsPublished, n.PublishedAt, n.AuthorID, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return news.News{}, errors.Wrap(err, "inserting news")
	}
	return n, nil
}

func (repo *newsRepository) get(ctx context.Context, col, val string) (news.News, error) {
	var n news.News
	err := repo.exec.GetContext(ctx, &n, repo.exec.Rebind("SELECT "+newsColumns+" FROM news WHERE "+col+" = ?"), val)
	if err != nil {
		return news.News{}, trapNoRowsErr(err, news.ErrNotFound, "finding news")
	}
	return n, nil
}

func (repo *newsRepository) GetNewsByID(ctx context.Context, id string) (news.News, error) {
	return repo.get(ctx, "id", id)
}

func (repo *newsRepository) GetNewsBySlug(ctx context.Context, slug string) (news.News, error) {
	return repo.get(ctx, "slug", slug)
}

func (repo *newsRepository) SlugExists(ctx context.Context, slug, excludedID string) (bool, error) {
	found, err := exists(ctx, repo.exec, "SELECT id FROM news WHERE slug = ? AND id <> ?", slug, excludedID)
	return found, errors.Wrap(err, "checking slug")
}

func (repo *newsRepository) FilterNews(ctx context.Context, filter news.QueryFilter) ([]news.News, error) {
	var w where
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("LOWER(title) LIKE ? OR LOWER(body) LIKE ?", val, val)
	}
	if filter.PublishedOnly {
		w.add("is_published = ?", true)
	}

	items := make([]news.News, 0)
	q := "SELECT " + newsColumns + " FROM news" + w.String() + " ORDER BY COALESCE(published_at, created_at) DESC LIMIT ? OFFSET ?"
	args := append(w.args, filter.Limit, filter.Offset)
	if err := selectIn(ctx, repo.exec, &items, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering news")
	}
	return items, nil
}

func (repo *newsRepository) UpdateNews(ctx context.Context, n news.News) (news.News, error) {
	stampNews(&n)
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"UPDATE news SET title = ?, slug = ?, body = ?, is_published = ?, published_at = ?, updated_at = ? WHERE id = ?"),
		n.Title, n.Slug, n.Body, n.IsPublished, n.PublishedAt, n.UpdatedAt, n.ID,
	)
	if err != nil {
		return news.News{}, errors.Wrap(err, "updating news")
	}
	if err = affectOne(res, news.ErrNotFound); err != nil {
		return news.News{}, err
	}
	return n, nil
}

func (repo *newsRepository) DeleteNews(ctx context.Context, id string) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM news WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting news")
	}
	return affectOne(res, news.ErrNotFound)
}
