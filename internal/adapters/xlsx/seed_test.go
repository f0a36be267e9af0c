package xlsx

import "testing"

func TestColumnIndex_NormalizesHeaderNames(t *testing.T) {
	idx := columnIndex([]string{"Num", "nombre completo", "SIGLAS"})

	if idx["NUM"] != 0 {
		t.Errorf("expected NUM at column 0, got %d", idx["NUM"])
	}
	if idx["NOMBRE_COMPLETO"] != 1 {
		t.Errorf("expected NOMBRE_COMPLETO at column 1, got %d", idx["NOMBRE_COMPLETO"])
	}
	if idx["SIGLAS"] != 2 {
		t.Errorf("expected SIGLAS at column 2, got %d", idx["SIGLAS"])
	}
}

func TestCell_OutOfRangeReturnsEmpty(t *testing.T) {
	row := []string{"a", "b"}

	if got := cell(row, 0); got != "a" {
		t.Errorf("expected %q, got %q", "a", got)
	}
	if got := cell(row, 5); got != "" {
		t.Errorf("expected empty string for out-of-range column, got %q", got)
	}
	if got := cell(row, -1); got != "" {
		t.Errorf("expected empty string for negative column, got %q", got)
	}
}

func TestClaveFromNum_StripsTrailingDotsAndReplacesInner(t *testing.T) {
	tests := []struct {
		prefix, num, want string
	}{
		{"ENTE_", "2.", "ENTE_2"},
		{"ENTE_", "2", "ENTE_2"},
		{"MUN_", "12.5", "MUN_12_5"},
		{"MUN_", " 7. ", "MUN_7"},
	}
	for _, tt := range tests {
		if got := claveFromNum(tt.prefix, tt.num); got != tt.want {
			t.Errorf("claveFromNum(%q, %q) = %q, want %q", tt.prefix, tt.num, got, tt.want)
		}
	}
}
