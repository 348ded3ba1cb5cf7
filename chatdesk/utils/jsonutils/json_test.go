package jsonutils

import "testing"

func TestToJSON(t *testing.T) {
	got := ToJSON(map[string]any{"a": 1})
	want := "{\n  \"a\": 1\n}"
	if got != want {
		t.Errorf("ToJSON = %q, want %q", got, want)
	}
	if ToJSON(make(chan int)) != "" {
		t.Error("unencodable values should give an empty string")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"héllo wörld", 4, "héll..."},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
