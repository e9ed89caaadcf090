package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

// ArticleExists reports whether the slug is already published in the workspace.
func (q *queries) ArticleExists(ctx context.Context, workspace, slug string) (bool, error) {
	row, err := q.queryRow(ctx, q.sb.Select("COUNT(*)").
		From("news_articles").
		Where(sq.Eq{"workspace": workspace, "slug": slug}))
	if err != nil {
		return false, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check article %s: %w", slug, err)
	}
	return count > 0, nil
}

// CreateArticle inserts the article unless its slug exists and reports whether a row was written.
func (q *queries) CreateArticle(ctx context.Context, article *domain.NewsArticle) (bool, error) {
	if article.PublishedAt.IsZero() {
		article.PublishedAt = q.now()
	}
	row, err := q.queryRow(ctx, q.sb.Insert("news_articles").
		Columns("workspace", "slug", "title", "summary", "body", "author", "published_at").
		Values(
			article.Workspace,
			article.Slug,
			article.Title,
			article.Summary,
			article.Body,
			nullString(article.Author),
			article.PublishedAt.UTC(),
		).
		Suffix("ON CONFLICT DO NOTHING RETURNING id"))
	if err != nil {
		return false, err
	}
	if err := row.Scan(&article.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert article %s: %w", article.Slug, err)
	}
	return true, nil
}

// Articles lists the published articles of a workspace, oldest first.
func (q *queries) Articles(ctx context.Context, workspace string) ([]domain.NewsArticle, error) {
	articles, err := queryAll(ctx, q, q.sb.Select("id", "workspace", "slug", "title", "summary", "body", "author", "published_at").
		From("news_articles").
		Where(sq.Eq{"workspace": workspace}).
		OrderBy("id ASC"), scanArticle)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return articles, nil
}

func scanArticle(row rowScanner) (domain.NewsArticle, error) {
	var (
		article domain.NewsArticle
		author  sql.NullString
	)
	err := row.Scan(
		&article.ID,
		&article.Workspace,
		&article.Slug,
		&article.Title,
		&article.Summary,
		&article.Body,
		&author,
		&article.PublishedAt,
	)
	if err != nil {
		return domain.NewsArticle{}, err
	}
	article.Author = author.String
	article.PublishedAt = article.PublishedAt.UTC()
	return article, nil
}
