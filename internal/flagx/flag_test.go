package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-a", ":8080", "-x", "1"},
			allowed: []string{"-a"},
			want:    []string{"-a", ":8080"},
		},
		{
			name:    "equals form",
			args:    []string{"-d=postgres://db", "-x=1"},
			allowed: []string{"-d"},
			want:    []string{"-d=postgres://db"},
		},
		{
			name:    "equals inside value",
			args:    []string{"-d", "host=db port=5432"},
			allowed: []string{"-d"},
			want:    []string{"-d", "host=db port=5432"},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-s"},
			allowed: []string{"-s"},
			want:    []string{"-s"},
		},
		{
			name:    "next token is a flag",
			args:    []string{"-s", "-a", ":1"},
			allowed: []string{"-s"},
			want:    []string{"-s"},
		},
		{
			name:    "unknown only",
			args:    []string{"-q", "v", "positional"},
			allowed: []string{"-s"},
			want:    []string{},
		},
		{
			name:    "repeated flags keep order",
			args:    []string{"-s", "one", "-a", ":1", "-s", "two"},
			allowed: []string{"-s", "-a"},
			want:    []string{"-s", "one", "-a", ":1", "-s", "two"},
		},
		{
			name:    "nil args",
			args:    nil,
			allowed: []string{"-s"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	t.Run("short", func(t *testing.T) {
		os.Args = []string{"bin", "-c", "/etc/taxvoice.yaml"}
		assert.Equal(t, "/etc/taxvoice.yaml", ConfigFileFlag())
	})

	t.Run("long with equals", func(t *testing.T) {
		os.Args = []string{"bin", "-config=/etc/taxvoice.json", "-a", ":9000"}
		assert.Equal(t, "/etc/taxvoice.json", ConfigFileFlag())
	})

	t.Run("absent", func(t *testing.T) {
		os.Args = []string{"bin", "-a", ":9000"}
		assert.Empty(t, ConfigFileFlag())
	})
}
