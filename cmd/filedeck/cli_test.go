package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/filedeck/internal/domain/delimited"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(csvCmd, serveCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores defaults between executions of the shared commands
func resetFlags(cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "filedeck dev\n", out)
}

func TestCSV(t *testing.T) {
	dir := t.TempDir()
	tsv := filepath.Join(dir, "people.tsv")
	require.NoError(t, os.WriteFile(tsv, []byte("name\tage\n\nAda\t36\n"), 0o644))

	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"stdin quoted", "a,\"b,c\",d\n", []string{"csv"}, "[\"a\",\"b,c\",\"d\"]\n"},
		{"escaped quote", "\"say \"\"hi\"\"\",x\n", []string{"csv"}, "[\"say \\\"hi\\\"\",\"x\"]\n"},
		{"named delimiter", "a;b\n", []string{"csv", "--delimiter", "semicolon"}, "[\"a\",\"b\"]\n"},
		{"literal delimiter", "a|b\n", []string{"csv", "-d", "|"}, "[\"a\",\"b\"]\n"},
		{"extension", "", []string{"csv", tsv}, "[\"name\",\"age\"]\n[\"Ada\",\"36\"]\n"},
		{"lenient unterminated", "a,\"b\n", []string{"csv"}, "[\"a\",\"b\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCSVErrors(t *testing.T) {
	_, err := execute(t, "a,\"b\n", "csv", "--strict")
	require.Error(t, err)
	assert.ErrorIs(t, err, delimited.ErrUnterminatedQuote)
	assert.Contains(t, err.Error(), "stdin: line 1")

	_, err = execute(t, "a,b\n", "csv", "--delimiter", "colon")
	assert.ErrorContains(t, err, "unknown delimiter")

	_, err = execute(t, "", "csv", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestCSVDelimiter(t *testing.T) {
	tests := []struct {
		flag, file string
		want       rune
		wantErr    bool
	}{
		{"", "", ',', false},
		{"", "export.tsv", '\t', false},
		{"tab", "export.csv", '\t', false},
		{";", "", ';', false},
		{"\"", "", 0, true},
		{"nope", "", 0, true},
	}
	for _, tt := range tests {
		got, err := csvDelimiter(tt.flag, tt.file)
		if tt.wantErr {
			assert.Error(t, err, tt.flag)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.flag)
	}
}

func TestLoadConfigFlags(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATA_DIR", t.TempDir())

	require.NoError(t, serveCmd.Flags().Set("port", "7000"))
	require.NoError(t, serveCmd.Flags().Set("root", "/srv/docs"))
	t.Cleanup(func() { resetFlags(serveCmd) })

	cfg, err := loadConfig(serveCmd)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, []string{"/srv/docs"}, cfg.Storage.Roots)
	assert.Equal(t, os.Getenv("DATA_DIR"), cfg.Storage.DataDir)
}
