package usecase

import (
	"context"
	"fmt"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// Publisher stores routed items as news articles.
type Publisher struct {
	store ports.Store
}

// NewPublisher wires the store.
func NewPublisher(store ports.Store) *Publisher {
	return &Publisher{store: store}
}

// Publish inserts an article for every item routed to publish whose slug is not yet taken.
// It returns the number of new articles.
func (p *Publisher) Publish(ctx context.Context, workspace string, items []domain.PipelineItem) (int, error) {
	created := 0
	err := p.store.InTx(ctx, func(repo ports.Repository) error {
		for _, item := range items {
			if item.Action() != domain.OutcomePublish {
				continue
			}

			exists, err := repo.ArticleExists(ctx, workspace, item.Slug)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			title, summary, body := item.Content()
			ok, err := repo.CreateArticle(ctx, &domain.NewsArticle{
				Workspace: workspace,
				Slug:      item.Slug,
				Title:     title,
				Summary:   summary,
				Body:      body,
				Author:    item.Author,
			})
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("publish articles: %w", err)
	}
	return created, nil
}
