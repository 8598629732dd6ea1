package phones

import (
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	input := "<eps> 0\nsil 1\na 2\n# comment\n\nk 3\nu 4\n"
	tab, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := tab.Symbol(3); got != "k" {
		t.Errorf("Symbol(3) = %q, want %q", got, "k")
	}
	if id, ok := tab.ID("u"); !ok || id != 4 {
		t.Errorf("ID(u) = %d,%v, want 4,true", id, ok)
	}
	if got := tab.Symbol(99); got != "99" {
		t.Errorf("Symbol(99) = %q, want %q", got, "99")
	}
	ids := tab.IDs()
	if len(ids) != 4 || ids[0] != 1 || ids[3] != 4 {
		t.Errorf("IDs() = %v", ids)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing id", "a\n"},
		{"bad id", "a x\n"},
		{"conflicting id", "a 1\nb 1\n"},
		{"conflicting symbol", "a 1\na 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.input)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWindow(t *testing.T) {
	tab := NewTable()
	for i, s := range []string{"i", "k", "u", "a"} {
		if err := tab.Add(s, int32(i+1)); err != nil {
			t.Fatal(err)
		}
	}
	tests := []struct {
		window  []int32
		central int
		want    string
	}{
		{[]int32{1, 2, 3}, 1, "i-k+u"},
		{[]int32{0, 4, 0}, 1, "#-a+#"},
		{[]int32{1, 2, 3, 4, 1}, 2, "i-k-u+a+i"},
		{[]int32{4}, 0, "a"},
	}
	for _, tt := range tests {
		got := tab.Window(tt.window, tt.central)
		if got != tt.want {
			t.Errorf("Window(%v, %d) = %q, want %q", tt.window, tt.central, got, tt.want)
		}
	}
}
