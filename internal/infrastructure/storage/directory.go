package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

// SyncWorkspace upserts the declared sources, proxies and channels of a workspace
// and deactivates rows that are no longer declared.
func (q *queries) SyncWorkspace(ctx context.Context, ws domain.Workspace) error {
	now := q.now()

	sourceNames := make([]string, 0, len(ws.Sources))
	for _, src := range ws.Sources {
		_, err := q.exec(ctx, q.sb.Insert("workspace_sources").
			Columns("workspace", "name", "kind", "endpoint", "is_active", "created_at").
			Values(ws.ID, src.Name, string(src.Kind), nullString(src.Endpoint), src.IsActive, now).
			Suffix("ON CONFLICT (workspace, name) DO UPDATE SET kind = excluded.kind, endpoint = excluded.endpoint, is_active = excluded.is_active"))
		if err != nil {
			return fmt.Errorf("sync source %s/%s: %w", ws.ID, src.Name, err)
		}
		sourceNames = append(sourceNames, src.Name)
	}

	proxyNames := make([]string, 0, len(ws.Proxies))
	for _, p := range ws.Proxies {
		_, err := q.exec(ctx, q.sb.Insert("workspace_proxies").
			Columns("workspace", "name", "protocol", "address", "is_active", "created_at").
			Values(ws.ID, p.Name, p.Protocol, p.Address, p.IsActive, now).
			Suffix("ON CONFLICT (workspace, name) DO UPDATE SET protocol = excluded.protocol, address = excluded.address, is_active = excluded.is_active"))
		if err != nil {
			return fmt.Errorf("sync proxy %s/%s: %w", ws.ID, p.Name, err)
		}
		proxyNames = append(proxyNames, p.Name)
	}

	channelNames := make([]string, 0, len(ws.Channels))
	for _, ch := range ws.Channels {
		_, err := q.exec(ctx, q.sb.Insert("delivery_channels").
			Columns("workspace", "name", "chat_id", "is_active", "created_at").
			Values(ws.ID, ch.Name, ch.ChatID, ch.IsActive, now).
			Suffix("ON CONFLICT (workspace, name) DO UPDATE SET chat_id = excluded.chat_id, is_active = excluded.is_active"))
		if err != nil {
			return fmt.Errorf("sync channel %s/%s: %w", ws.ID, ch.Name, err)
		}
		channelNames = append(channelNames, ch.Name)
	}

	for table, names := range map[string][]string{
		"workspace_sources": sourceNames,
		"workspace_proxies": proxyNames,
		"delivery_channels": channelNames,
	} {
		_, err := q.exec(ctx, q.sb.Update(table).
			Set("is_active", false).
			Where(sq.Eq{"workspace": ws.ID}).
			Where(sq.NotEq{"name": names}))
		if err != nil {
			return fmt.Errorf("deactivate stale %s for %s: %w", table, ws.ID, err)
		}
	}
	return nil
}

// Sources lists the sources of a workspace.
func (q *queries) Sources(ctx context.Context, workspace string) ([]domain.Source, error) {
	sources, err := queryAll(ctx, q, q.sb.Select("id", "workspace", "name", "kind", "endpoint", "is_active", "created_at").
		From("workspace_sources").
		Where(sq.Eq{"workspace": workspace}).
		OrderBy("id ASC"), func(row rowScanner) (domain.Source, error) {
		var (
			src      domain.Source
			kind     string
			endpoint sql.NullString
		)
		if err := row.Scan(&src.ID, &src.Workspace, &src.Name, &kind, &endpoint, &src.IsActive, &src.CreatedAt); err != nil {
			return domain.Source{}, err
		}
		src.Kind = domain.SourceKind(kind)
		src.Endpoint = endpoint.String
		src.CreatedAt = src.CreatedAt.UTC()
		return src, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// Proxies lists the proxies of a workspace.
func (q *queries) Proxies(ctx context.Context, workspace string) ([]domain.Proxy, error) {
	proxies, err := queryAll(ctx, q, q.sb.Select("id", "workspace", "name", "protocol", "address", "is_active", "created_at").
		From("workspace_proxies").
		Where(sq.Eq{"workspace": workspace}).
		OrderBy("id ASC"), func(row rowScanner) (domain.Proxy, error) {
		var p domain.Proxy
		if err := row.Scan(&p.ID, &p.Workspace, &p.Name, &p.Protocol, &p.Address, &p.IsActive, &p.CreatedAt); err != nil {
			return domain.Proxy{}, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list proxies: %w", err)
	}
	return proxies, nil
}

// Channels lists every delivery channel of a workspace.
func (q *queries) Channels(ctx context.Context, workspace string) ([]domain.DeliveryChannel, error) {
	return q.channels(ctx, sq.Eq{"workspace": workspace})
}

// ActiveChannels lists the channels that currently receive deliveries.
func (q *queries) ActiveChannels(ctx context.Context, workspace string) ([]domain.DeliveryChannel, error) {
	return q.channels(ctx, sq.Eq{"workspace": workspace, "is_active": true})
}

func (q *queries) channels(ctx context.Context, where sq.Eq) ([]domain.DeliveryChannel, error) {
	channels, err := queryAll(ctx, q, q.sb.Select("id", "workspace", "name", "chat_id", "is_active", "created_at").
		From("delivery_channels").
		Where(where).
		OrderBy("id ASC"), func(row rowScanner) (domain.DeliveryChannel, error) {
		var ch domain.DeliveryChannel
		if err := row.Scan(&ch.ID, &ch.Workspace, &ch.Name, &ch.ChatID, &ch.IsActive, &ch.CreatedAt); err != nil {
			return domain.DeliveryChannel{}, err
		}
		ch.CreatedAt = ch.CreatedAt.UTC()
		return ch, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}
