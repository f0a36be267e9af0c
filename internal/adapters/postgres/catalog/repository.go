// Package catalog implements the Catalog Store (C1) persistence side:
// reading/writing the entes/municipios/usuarios tables, grounded on the
// teacher's acquirer postgres repository's query style.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sasp-edomex/scil-auditoria/internal/core/catalog"
	"github.com/sasp-edomex/scil-auditoria/internal/core/user"
)

// Repository persists and reloads the catalog and the user roster.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Postgres-backed catalog repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadEntities satisfies application/bootstrap.CatalogSource: it unions the
// entes (ESTATAL) and municipios (MUNICIPAL) tables, per spec.md section 6's
// persisted schema.
func (r *Repository) LoadEntities(ctx context.Context) ([]catalog.Entity, error) {
	estatales, err := r.loadTable(ctx, "entes")
	if err != nil {
		return nil, err
	}
	municipales, err := r.loadTable(ctx, "municipios")
	if err != nil {
		return nil, err
	}
	return append(estatales, municipales...), nil
}

func (r *Repository) loadTable(ctx context.Context, table string) ([]catalog.Entity, error) {
	query := fmt.Sprintf(`
		SELECT clave, nombre, siglas, clasificacion, ambito, activo
		FROM %s
		ORDER BY clave
	`, table)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var entities []catalog.Entity
	for rows.Next() {
		var e catalog.Entity
		var ambito string
		if err := rows.Scan(&e.Clave, &e.Nombre, &e.Siglas, &e.Clasificacion, &ambito, &e.Activo); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		e.Ambito = catalog.Ambito(ambito)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return entities, nil
}

// LoadUsers satisfies application/bootstrap.UserSource.
func (r *Repository) LoadUsers(ctx context.Context) ([]user.User, error) {
	query := `SELECT usuario, clave, nombre, entes FROM usuarios ORDER BY usuario`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query usuarios: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		var u user.User
		var entesRaw string
		if err := rows.Scan(&u.Usuario, &u.Clave, &u.Nombre, &entesRaw); err != nil {
			return nil, fmt.Errorf("scan usuario: %w", err)
		}
		u.Entes = user.ParseEntesField(entesRaw)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usuarios: %w", err)
	}
	return users, nil
}

// Seed upserts the catalog entities loaded from the install-time XLSX seed
// files (internal/adapters/xlsx.CatalogSeedSource) into entes or municipios
// according to each entity's ambito. Used only by the bootstrap CLI path,
// never by request handling.
func (r *Repository) Seed(ctx context.Context, entities []catalog.Entity) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entities {
		table := "entes"
		if e.Ambito == catalog.Municipal {
			table = "municipios"
		}
		query := fmt.Sprintf(`
			INSERT INTO %s (clave, nombre, siglas, clasificacion, ambito, activo)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (clave) DO UPDATE SET
				nombre = EXCLUDED.nombre,
				siglas = EXCLUDED.siglas,
				clasificacion = EXCLUDED.clasificacion,
				ambito = EXCLUDED.ambito,
				activo = EXCLUDED.activo
		`, table)
		if _, err := tx.Exec(ctx, query, e.Clave, e.Nombre, e.Siglas, e.Clasificacion, string(e.Ambito), e.Activo); err != nil {
			return fmt.Errorf("upsert %s %s: %w", table, e.Clave, err)
		}
	}
	return tx.Commit(ctx)
}

// SeedUsers upserts the user roster loaded from Usuarios_SASP_2025.xlsx.
func (r *Repository) SeedUsers(ctx context.Context, users []user.User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed users tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO usuarios (usuario, clave, nombre, entes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (usuario) DO UPDATE SET
			clave = EXCLUDED.clave,
			nombre = EXCLUDED.nombre,
			entes = EXCLUDED.entes
	`
	for _, u := range users {
		if _, err := tx.Exec(ctx, query, u.Usuario, u.Clave, u.Nombre, joinEntes(u.Entes)); err != nil {
			return fmt.Errorf("upsert usuario %s: %w", u.Usuario, err)
		}
	}
	return tx.Commit(ctx)
}

func joinEntes(entes []string) string {
	out := ""
	for i, e := range entes {
		if i > 0 {
			out += ","
		}
		out += e
	}
	return out
}
