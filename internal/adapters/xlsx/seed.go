package xlsx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/sasp-edomex/scil-auditoria/internal/core/catalog"
	"github.com/sasp-edomex/scil-auditoria/internal/core/user"
)

// SeedOpener opens the three install-time seed files by name.
type SeedOpener interface {
	Open(name string) (io.ReadCloser, error)
}

// CatalogSeedSource implements application/bootstrap.CatalogSource by
// reading Estatales.xlsx and Municipales.xlsx, per spec.md section 6.
type CatalogSeedSource struct {
	Opener SeedOpener
}

// LoadEntities parses both seed catalog files into the union of entities.
func (s CatalogSeedSource) LoadEntities(ctx context.Context) ([]catalog.Entity, error) {
	estatales, err := s.loadSheet("Estatales.xlsx", "ENTE_", catalog.Estatal)
	if err != nil {
		return nil, err
	}
	municipales, err := s.loadSheet("Municipales.xlsx", "MUN_", catalog.Municipal)
	if err != nil {
		return nil, err
	}
	return append(estatales, municipales...), nil
}

func (s CatalogSeedSource) loadSheet(file, clavePrefix string, ambito catalog.Ambito) ([]catalog.Entity, error) {
	rc, err := s.Opener.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer rc.Close()

	wb, err := Open(rc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", file, err)
	}
	defer wb.Close()

	sheets := wb.SheetNames()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s has no sheets", file)
	}
	rows, err := wb.Rows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := columnIndex(rows[0])
	numCol, numOK := cols["NUM"]
	nombreCol, nombreOK := cols["NOMBRE"]
	siglasCol, siglasOK := cols["SIGLAS"]
	clasifCol := cols["CLASIFICACION"]
	if !numOK || !nombreOK || !siglasOK {
		return nil, fmt.Errorf("%s: missing required columns NUM/NOMBRE/SIGLAS", file)
	}

	entities := make([]catalog.Entity, 0, len(rows)-1)
	for _, row := range rows[1:] {
		num := cell(row, numCol)
		if strings.TrimSpace(num) == "" {
			continue
		}
		entities = append(entities, catalog.Entity{
			Clave:         claveFromNum(clavePrefix, num),
			Nombre:        cell(row, nombreCol),
			Siglas:        cell(row, siglasCol),
			Clasificacion: cell(row, clasifCol),
			Ambito:        ambito,
			Activo:        true,
		})
	}
	return entities, nil
}

// claveFromNum builds a catalog clave from a NUM cell per spec.md section
// 6: strip trailing dots, then replace remaining dots with underscores.
func claveFromNum(prefix, num string) string {
	num = strings.TrimSpace(num)
	num = strings.TrimRight(num, ".")
	num = strings.ReplaceAll(num, ".", "_")
	return prefix + num
}

// UserSeedSource implements application/bootstrap.UserSource by reading
// Usuarios_SASP_2025.xlsx.
type UserSeedSource struct {
	Opener SeedOpener
}

// LoadUsers parses the seed users workbook.
func (s UserSeedSource) LoadUsers(ctx context.Context) ([]user.User, error) {
	rc, err := s.Opener.Open("Usuarios_SASP_2025.xlsx")
	if err != nil {
		return nil, fmt.Errorf("open Usuarios_SASP_2025.xlsx: %w", err)
	}
	defer rc.Close()

	wb, err := Open(rc)
	if err != nil {
		return nil, fmt.Errorf("parse Usuarios_SASP_2025.xlsx: %w", err)
	}
	defer wb.Close()

	sheets := wb.SheetNames()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := wb.Rows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := columnIndex(rows[0])
	usuarioCol, usuarioOK := cols["USUARIO"]
	claveCol, claveOK := cols["CLAVE"]
	nombreCol := cols["NOMBRE_COMPLETO"]
	entesCol := cols["ENTES_ASIGNADOS"]
	if !usuarioOK || !claveOK {
		return nil, fmt.Errorf("Usuarios_SASP_2025.xlsx: missing required columns Usuario/Clave")
	}

	users := make([]user.User, 0, len(rows)-1)
	for _, row := range rows[1:] {
		usuario := strings.TrimSpace(cell(row, usuarioCol))
		if usuario == "" {
			continue
		}
		plaintext := cell(row, claveCol)
		sum := sha256.Sum256([]byte(plaintext))
		users = append(users, user.User{
			Usuario: strings.ToLower(usuario),
			Nombre:  cell(row, nombreCol),
			Clave:   hex.EncodeToString(sum[:]),
			Entes:   user.ParseEntesField(cell(row, entesCol)),
		})
	}
	return users, nil
}

// columnIndex maps a normalized header name to its column position.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(h, " ", "_")))] = i
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
