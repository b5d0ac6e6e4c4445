package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/GriffinCanCode/filedeck/internal/infrastructure/store"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, opts Options) *Provider {
	t.Helper()
	p, err := NewProvider(opts)
	require.NoError(t, err)
	return p
}

func exec(t *testing.T, p *Provider, tool string, params map[string]interface{}) *types.Result {
	t.Helper()
	result, err := p.Execute(context.Background(), tool, params, nil)
	require.NoError(t, err)
	return result
}

func TestDefaults(t *testing.T) {
	p := newProvider(t, Options{})

	assert.False(t, p.Bool(KeyShowHidden))
	assert.Equal(t, "name", p.String(KeySort))
	assert.Equal(t, 50, p.Int(KeyHistoryDepth))
	assert.Equal(t, 2*1024*1024, p.Int(KeyMaxReadBytes))
	assert.Equal(t, "view", p.String(KeyDefaultMode))

	var prefs Preferences = p
	assert.Equal(t, 50, prefs.Int(KeyPreviewRows))
}

func TestOverrides(t *testing.T) {
	p := newProvider(t, Options{Overrides: map[string]interface{}{
		KeyHistoryDepth: 20,
		KeySort:         "bogus",
	}})
	assert.Equal(t, 20, p.Int(KeyHistoryDepth))
	assert.Equal(t, "name", p.String(KeySort), "invalid overrides are ignored")

	result := exec(t, p, "settings.reset", map[string]interface{}{"key": KeyHistoryDepth})
	require.True(t, result.Success)
	assert.Equal(t, 20, p.Int(KeyHistoryDepth), "override becomes the default")
}

func TestGetSet(t *testing.T) {
	p := newProvider(t, Options{})

	result := exec(t, p, "settings.set", map[string]interface{}{"key": KeySort, "value": "size"})
	require.True(t, result.Success)

	result = exec(t, p, "settings.get", map[string]interface{}{"key": KeySort})
	require.True(t, result.Success)
	assert.Equal(t, "size", result.Data["value"])
	assert.Equal(t, "name", result.Data["default"])
	assert.Equal(t, []string{"name", "size", "modified"}, result.Data["choices"])

	result = exec(t, p, "settings.set", map[string]interface{}{"key": KeyHistoryDepth, "value": float64(75)})
	require.True(t, result.Success)
	assert.Equal(t, 75, p.Int(KeyHistoryDepth))

	result = exec(t, p, "settings.get", map[string]interface{}{"key": "nope"})
	assert.False(t, result.Success)
}

func TestSetValidation(t *testing.T) {
	p := newProvider(t, Options{})

	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{"wrong type bool", KeyShowHidden, "yes"},
		{"wrong type number", KeyHistoryDepth, "ten"},
		{"fractional", KeyHistoryDepth, 2.5},
		{"below min", KeyHistoryDepth, float64(0)},
		{"above max", KeyPreviewRows, float64(5000)},
		{"bad choice", KeyDefaultMode, "write"},
		{"nil value", KeySort, nil},
		{"missing key", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := exec(t, p, "settings.set", map[string]interface{}{"key": tt.key, "value": tt.value})
			assert.False(t, result.Success)
		})
	}
	assert.Equal(t, 50, p.Int(KeyHistoryDepth))
}

func TestCustomSetting(t *testing.T) {
	p := newProvider(t, Options{})

	result := exec(t, p, "settings.set", map[string]interface{}{"key": "ui.accent", "value": "#3b82f6"})
	require.True(t, result.Success)

	setting, ok := p.Lookup("ui.accent")
	require.True(t, ok)
	assert.Equal(t, "custom", setting.Category)
	assert.Equal(t, "string", setting.Type)

	result = exec(t, p, "settings.reset", map[string]interface{}{"key": "ui.accent"})
	require.True(t, result.Success)
	_, ok = p.Lookup("ui.accent")
	assert.False(t, ok, "resetting a custom setting removes it")
}

func TestListAndCategories(t *testing.T) {
	p := newProvider(t, Options{})

	result := exec(t, p, "settings.list", map[string]interface{}{"category": "browser"})
	require.True(t, result.Success)
	settings := result.Data["settings"].([]Setting)
	require.Len(t, settings, 3)
	assert.Equal(t, KeyShowHidden, settings[0].Key)

	result = exec(t, p, "settings.categories", nil)
	require.True(t, result.Success)
	assert.Equal(t, []string{"browser", "cloud", "documents", "editor", "search", "sheets"}, result.Data["categories"])
}

func TestExportImport(t *testing.T) {
	src := newProvider(t, Options{})
	_, err := src.Set(KeyShowHidden, true)
	require.NoError(t, err)
	_, err = src.Set(KeyPreviewRows, float64(25))
	require.NoError(t, err)

	for _, format := range []string{"yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			result := exec(t, src, "settings.export", map[string]interface{}{"format": format})
			require.True(t, result.Success)
			text := result.Data["text"].(string)
			assert.Contains(t, text, "browser.show_hidden")

			dst := newProvider(t, Options{})
			result = exec(t, dst, "settings.import", map[string]interface{}{"text": text, "format": format})
			require.True(t, result.Success)
			assert.Empty(t, result.Data["failed"])
			assert.True(t, dst.Bool(KeyShowHidden))
			assert.Equal(t, 25, dst.Int(KeyPreviewRows))
		})
	}

	result := exec(t, src, "settings.export", map[string]interface{}{"format": "xml"})
	assert.False(t, result.Success)
}

func TestImportObject(t *testing.T) {
	p := newProvider(t, Options{})
	result := exec(t, p, "settings.import", map[string]interface{}{
		"settings": map[string]interface{}{
			KeySort:         "modified",
			KeyHistoryDepth: "lots",
		},
	})
	require.True(t, result.Success)
	assert.Equal(t, 1, result.Data["imported"])
	assert.Contains(t, result.Data["failed"], KeyHistoryDepth)
	assert.Equal(t, "modified", p.String(KeySort))

	result = exec(t, p, "settings.import", nil)
	assert.False(t, result.Success)
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	db, err := store.Open(path, nil)
	require.NoError(t, err)

	p := newProvider(t, Options{Backend: db})
	_, err = p.Set(KeyShowHidden, true)
	require.NoError(t, err)
	_, err = p.Set(KeySort, "size")
	require.NoError(t, err)
	exec(t, p, "settings.reset", map[string]interface{}{"key": KeySort})
	require.NoError(t, db.Close())

	db, err = store.Open(path, nil)
	require.NoError(t, err)
	defer db.Close()

	restarted := newProvider(t, Options{Backend: db})
	assert.True(t, restarted.Bool(KeyShowHidden))
	assert.Equal(t, "name", restarted.String(KeySort))
}
