package systemd

import "testing"

func TestUnitName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ffview", "ffview.service"},
		{"ffview.service", "ffview.service"},
		{"ffview@cam1", "ffview@cam1.service"},
		{"ffview.socket", "ffview.socket"},
	}
	for _, tt := range tests {
		if got := UnitName(tt.in); got != tt.want {
			t.Errorf("UnitName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	var m Manager
	m.Close()
}
