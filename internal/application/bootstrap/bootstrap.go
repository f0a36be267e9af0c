// Package bootstrap builds the immutable catalog.Registry and the user
// list once at process startup, per spec.md Design Note 2 ("global
// catalog -> immutable registry"): a value constructed once and passed
// explicitly, never a hidden global.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/sasp-edomex/scil-auditoria/internal/core/catalog"
	"github.com/sasp-edomex/scil-auditoria/internal/core/user"
)

// CatalogSource loads the persisted entes/municipios rows. In production
// this is backed by internal/adapters/postgres/catalog; at install time it
// can instead be backed by internal/adapters/xlsx reading the seed
// workbooks directly.
type CatalogSource interface {
	LoadEntities(ctx context.Context) ([]catalog.Entity, error)
}

// UserSource loads the persisted usuarios rows.
type UserSource interface {
	LoadUsers(ctx context.Context) ([]user.User, error)
}

// Load builds the Registry and the user list. Catalog load must complete
// before any ingest call accepts work (spec.md section 9).
func Load(ctx context.Context, catalogSrc CatalogSource, userSrc UserSource) (*catalog.Registry, []user.User, error) {
	entities, err := catalogSrc.LoadEntities(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	registry := catalog.NewRegistry(entities)

	users, err := userSrc.LoadUsers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load users: %w", err)
	}

	return registry, users, nil
}
