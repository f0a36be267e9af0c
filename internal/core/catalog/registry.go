package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes Unicode combining marks after NFD decomposition,
// used to make catalog alias matching accent-insensitive.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize uppercases, trims and accent-strips a label for alias lookup.
func normalize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		return s
	}
	return out
}

// Registry is the immutable, in-memory catalog built once at startup from
// the entes/municipios seed rows. It is safe for concurrent read-only use;
// it carries no mutation methods.
type Registry struct {
	aliasToClave map[string]string
	byClave      map[string]Entity
}

// NewRegistry builds a Registry from the full set of entities. Later
// entries win on alias collisions, but callers are expected to pass a
// deduplicated catalog (clave is unique by spec invariant).
func NewRegistry(entities []Entity) *Registry {
	r := &Registry{
		aliasToClave: make(map[string]string, len(entities)*3),
		byClave:      make(map[string]Entity, len(entities)),
	}
	for _, e := range entities {
		r.byClave[e.Clave] = e
		for _, alias := range []string{e.Clave, e.Nombre, e.Siglas} {
			if alias == "" {
				continue
			}
			r.aliasToClave[normalize(alias)] = e.Clave
		}
	}
	return r
}

// Resolve looks up a sheet label (clave, nombre or siglas, in any case and
// accent variant) and returns the canonical clave.
func (r *Registry) Resolve(label string) (string, bool) {
	clave, ok := r.aliasToClave[normalize(label)]
	return clave, ok
}

// Display returns the preferred human-facing label for a clave: siglas,
// falling back to nombre, falling back to the clave itself.
func (r *Registry) Display(clave string) string {
	e, ok := r.byClave[clave]
	if !ok {
		return clave
	}
	if e.Siglas != "" {
		return e.Siglas
	}
	if e.Nombre != "" {
		return e.Nombre
	}
	return clave
}

// Entity returns the catalog entry for a clave, if known.
func (r *Registry) Entity(clave string) (Entity, bool) {
	e, ok := r.byClave[clave]
	return e, ok
}

// Match reports whether a user-assigned token and a row's entity label
// refer to the same entity: either they resolve to the same clave, or one
// normalized string contains the other.
func (r *Registry) Match(userToken, rowLabel string) bool {
	ut, rt := normalize(userToken), normalize(rowLabel)
	if ut == "" || rt == "" {
		return false
	}
	uc, uok := r.Resolve(userToken)
	rc, rok := r.Resolve(rowLabel)
	if uok && rok && uc == rc {
		return true
	}
	return strings.Contains(ut, rt) || strings.Contains(rt, ut)
}

// HasFullAccess reports whether any token, normalized, is a recognized
// unrestricted-access sentinel ("TODOS" or "ALL").
func HasFullAccess(tokens []string) bool {
	for _, t := range tokens {
		if _, ok := FullAccessTokens[normalize(t)]; ok {
			return true
		}
	}
	return false
}
