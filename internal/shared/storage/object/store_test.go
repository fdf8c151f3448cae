package object

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "plain", key: "analyses/1/a.csv", want: "analyses/1/a.csv"},
		{name: "leading slash", key: "/analyses/1/a.csv", want: "analyses/1/a.csv"},
		{name: "double slash", key: "analyses//1/a.csv", want: "analyses/1/a.csv"},
		{name: "dots inside name", key: "analyses/1/a..b.csv", want: "analyses/1/a..b.csv"},
		{name: "empty", key: "  ", wantErr: true},
		{name: "root only", key: "/", wantErr: true},
		{name: "parent escape", key: "../etc/passwd", wantErr: true},
		{name: "nested escape", key: "analyses/../../x", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CleanKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Fatalf("CleanKey(%q) error = %v, want ErrInvalidKey", tt.key, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanKey(%q) unexpected error: %v", tt.key, err)
			}
			if got != tt.want {
				t.Fatalf("CleanKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
