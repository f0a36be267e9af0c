package finding

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalJSON builds the deterministic serialization whose hash is
// hash_firma. Only the fields spec.md names as hash-significant
// (rfc, entes, fecha_comun, tipo_patron, descripcion, registros) are
// included; estado, solventacion and nombre are mutable/derived and must
// not affect identity. Map-valued JSON keys are sorted by encoding/json,
// and the representation carries no extra whitespace, satisfying the
// "sorted keys, UTF-8, no whitespace variance" contract in spec.md
// Design Note 4.
func canonicalJSON(f Finding) ([]byte, error) {
	registros := make([]map[string]any, len(f.Registros))
	for i, r := range f.Registros {
		registros[i] = map[string]any{
			"ente":          r.Ente,
			"fecha_egreso":  r.FechaEgreso,
			"fecha_ingreso": r.FechaIngreso,
			"monto":         r.Monto,
			"nombre":        r.Nombre,
			"puesto":        r.Puesto,
			"rfc_original":  r.RFCOriginal,
		}
	}
	payload := map[string]any{
		"descripcion": f.Descripcion,
		"entes":       f.Entes,
		"fecha_comun": f.FechaComun,
		"registros":   registros,
		"rfc":         f.RFC,
		"tipo_patron": f.TipoPatron,
	}
	return json.Marshal(payload)
}

// HashFirma computes the content-addressed hash used as the uniqueness key
// in the Finding Store (C4).
func HashFirma(f Finding) (string, error) {
	b, err := canonicalJSON(f)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
