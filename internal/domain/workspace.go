package domain

import "time"

// SourceKind selects the strategy used to collect raw items.
type SourceKind string

const (
	SourceStatic SourceKind = "static"
	SourceRSS    SourceKind = "rss"
	SourceHTML   SourceKind = "html"
)

// Valid reports whether the kind has a registered strategy.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceStatic, SourceRSS, SourceHTML:
		return true
	}
	return false
}

// Workspace is the resolved, read-only configuration of one tenant.
type Workspace struct {
	ID              string
	Enabled         bool
	TargetLanguage  string
	RetryAttempts   int
	RetryDelay      time.Duration
	DeliveryEnabled bool
	Sources         []Source
	Proxies         []Proxy
	Channels        []DeliveryChannel
}

// Source is an upstream feed of raw items.
type Source struct {
	ID        int64             `json:"id"`
	Workspace string            `json:"workspace"`
	Name      string            `json:"name"`
	Kind      SourceKind        `json:"kind"`
	Endpoint  string            `json:"endpoint,omitempty"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	Items     []RawItem         `json:"-"`
	Options   map[string]string `json:"-"`
}

// Proxy is a network egress registered for a workspace.
type Proxy struct {
	ID        int64     `json:"id"`
	Workspace string    `json:"workspace"`
	Name      string    `json:"name"`
	Protocol  string    `json:"protocol"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// DeliveryChannel is a chat destination for published items.
type DeliveryChannel struct {
	ID        int64     `json:"id"`
	Workspace string    `json:"workspace"`
	Name      string    `json:"name"`
	ChatID    string    `json:"chat_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
