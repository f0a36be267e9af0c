package user

import "testing"

func TestDirectory_Lookup(t *testing.T) {
	d := NewDirectory([]User{
		{Usuario: "ana.lopez", Nombre: "Ana Lopez", Entes: []string{"ENTE_00002"}},
	})

	u, ok := d.Lookup("Ana.Lopez")
	if !ok {
		t.Fatal("expected lookup to succeed case-insensitively")
	}
	if u.Nombre != "Ana Lopez" {
		t.Errorf("expected Nombre 'Ana Lopez', got %q", u.Nombre)
	}

	if _, ok := d.Lookup("unknown"); ok {
		t.Error("expected lookup of unknown user to fail")
	}
}
