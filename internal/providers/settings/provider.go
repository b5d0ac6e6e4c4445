package settings

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/filedeck/internal/infrastructure/store"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// Well-known setting keys read by other providers
const (
	KeyShowHidden      = "browser.show_hidden"
	KeySort            = "browser.sort"
	KeySortDescending  = "browser.sort_descending"
	KeyHistoryDepth    = "editor.history_depth"
	KeyDefaultMode     = "editor.default_mode"
	KeyMaxReadBytes    = "documents.max_read_bytes"
	KeyPreviewRows     = "sheets.preview_rows"
	KeyCloudCompress   = "cloud.compress"
	KeySearchMaxResult = "search.max_results"
)

// Preferences is the read side of settings used by other providers
type Preferences interface {
	Bool(key string) bool
	Int(key string) int
	String(key string) string
}

// Backend persists settings. *store.Store satisfies it.
type Backend interface {
	Put(bucket, key string, v interface{}) error
	Delete(bucket, key string) error
	ForEach(bucket, prefix string, fn func(key string, raw []byte) error) error
}

// Provider implements settings and configuration management
type Provider struct {
	backend Backend
	log     *zap.Logger
	cache   sync.Map // key -> Setting
}

// Setting represents a configuration setting
type Setting struct {
	Key         string      `json:"key"`
	Value       interface{} `json:"value"`
	Type        string      `json:"type"` // "string", "number", "boolean", "json"
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Default     interface{} `json:"default"`
	Choices     []string    `json:"choices,omitempty"`
	Min         *float64    `json:"min,omitempty"`
	Max         *float64    `json:"max,omitempty"`
}

// Options configures a Provider
type Options struct {
	Backend Backend // nil keeps settings in memory
	Logger  *zap.Logger

	// Overrides replace built-in default values, e.g. from environment config
	Overrides map[string]interface{}
}

// NewProvider creates a settings provider seeded with defaults and any persisted values
func NewProvider(opts Options) (*Provider, error) {
	p := &Provider{backend: opts.Backend, log: opts.Logger}
	if p.log == nil {
		p.log = zap.NewNop()
	}

	p.initializeDefaults(opts.Overrides)
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Defaults returns preferences holding only the built-in values
func Defaults() Preferences {
	p, _ := NewProvider(Options{})
	return p
}

func bound(v float64) *float64 { return &v }

// initializeDefaults sets up default settings
func (s *Provider) initializeDefaults(overrides map[string]interface{}) {
	defaults := []Setting{
		// Browser
		{Key: KeyShowHidden, Value: false, Type: "boolean", Category: "browser", Description: "Show hidden files"},
		{Key: KeySort, Value: "name", Type: "string", Category: "browser", Description: "Sort order for listings", Choices: []string{"name", "size", "modified"}},
		{Key: KeySortDescending, Value: false, Type: "boolean", Category: "browser", Description: "Reverse the sort order"},

		// Editor
		{Key: KeyHistoryDepth, Value: 50, Type: "number", Category: "editor", Description: "Undo/redo history depth", Min: bound(1), Max: bound(1000)},
		{Key: KeyDefaultMode, Value: "view", Type: "string", Category: "editor", Description: "Mode documents open in", Choices: []string{"view", "edit"}},

		// Documents
		{Key: KeyMaxReadBytes, Value: 2 * 1024 * 1024, Type: "number", Category: "documents", Description: "Largest document read in full (bytes)", Min: bound(1024), Max: bound(8 * 1024 * 1024)},

		// Sheets
		{Key: KeyPreviewRows, Value: 50, Type: "number", Category: "sheets", Description: "Rows per preview page", Min: bound(1), Max: bound(1000)},

		// Cloud
		{Key: KeyCloudCompress, Value: false, Type: "boolean", Category: "cloud", Description: "Gzip objects before upload"},

		// Search
		{Key: KeySearchMaxResult, Value: 100, Type: "number", Category: "search", Description: "Maximum search results", Min: bound(1), Max: bound(10000)},
	}

	for _, d := range defaults {
		if v, ok := overrides[d.Key]; ok && checkValue(d, v) == nil {
			d.Value = v
		}
		d.Default = d.Value
		s.cache.Store(d.Key, d)
	}
}

func (s *Provider) load() error {
	if s.backend == nil {
		return nil
	}
	count := 0
	err := s.backend.ForEach(store.BucketSettings, "", func(key string, raw []byte) error {
		var stored Setting
		if err := store.Decode(raw, &stored); err != nil {
			s.log.Warn("skipping unreadable setting", zap.String("key", key), zap.Error(err))
			return nil
		}
		if val, ok := s.cache.Load(key); ok {
			setting := val.(Setting)
			if checkValue(setting, stored.Value) != nil {
				s.log.Warn("ignoring invalid stored setting", zap.String("key", key))
				return nil
			}
			setting.Value = stored.Value
			s.cache.Store(key, setting)
		} else {
			s.cache.Store(key, stored)
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	s.log.Debug("settings loaded", zap.Int("stored", count))
	return nil
}

// Definition returns service metadata
func (s *Provider) Definition() types.Service {
	return types.Service{
		ID:          "settings",
		Name:        "Settings Service",
		Description: "File manager preferences and configuration",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"get",
			"set",
			"list",
			"reset",
			"export",
			"import",
		},
		Tools: []types.Tool{
			{
				ID:          "settings.get",
				Name:        "Get Setting",
				Description: "Get a configuration setting value",
				Parameters: []types.Parameter{
					{Name: "key", Type: "string", Description: "Setting key", Required: true},
				},
				Returns: "Setting",
			},
			{
				ID:          "settings.set",
				Name:        "Set Setting",
				Description: "Set a configuration setting value",
				Parameters: []types.Parameter{
					{Name: "key", Type: "string", Description: "Setting key", Required: true},
					{Name: "value", Type: "any", Description: "Setting value", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "settings.list",
				Name:        "List Settings",
				Description: "List all settings optionally filtered by category",
				Parameters: []types.Parameter{
					{Name: "category", Type: "string", Description: "Category filter (optional)", Required: false},
				},
				Returns: "array",
			},
			{
				ID:          "settings.reset",
				Name:        "Reset Setting",
				Description: "Reset a setting to its default value",
				Parameters: []types.Parameter{
					{Name: "key", Type: "string", Description: "Setting key", Required: true},
				},
				Returns: "boolean",
			},
			{
				ID:          "settings.export",
				Name:        "Export Settings",
				Description: "Export all settings as an object, YAML or TOML",
				Parameters: []types.Parameter{
					{Name: "format", Type: "string", Description: "json (default), yaml or toml", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "settings.import",
				Name:        "Import Settings",
				Description: "Import settings from an object or YAML/TOML text",
				Parameters: []types.Parameter{
					{Name: "settings", Type: "object", Description: "Settings to import", Required: false},
					{Name: "text", Type: "string", Description: "Encoded settings", Required: false},
					{Name: "format", Type: "string", Description: "yaml or toml when text is given", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "settings.categories",
				Name:        "List Categories",
				Description: "Get all setting categories",
				Parameters:  []types.Parameter{},
				Returns:     "array",
			},
		},
	}
}

// Execute runs a settings operation
func (s *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "settings.get":
		return s.get(params)
	case "settings.set":
		return s.set(params)
	case "settings.list":
		return s.list(params)
	case "settings.reset":
		return s.reset(params)
	case "settings.export":
		return s.exportSettings(params)
	case "settings.import":
		return s.importSettings(params)
	case "settings.categories":
		return s.categories()
	default:
		return types.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

// Lookup returns a setting
func (s *Provider) Lookup(key string) (Setting, bool) {
	val, ok := s.cache.Load(key)
	if !ok {
		return Setting{}, false
	}
	return val.(Setting), true
}

// Bool returns a boolean setting, false if missing or not a boolean
func (s *Provider) Bool(key string) bool {
	setting, _ := s.Lookup(key)
	b, _ := setting.Value.(bool)
	return b
}

// Int returns a numeric setting truncated to int, 0 if missing
func (s *Provider) Int(key string) int {
	setting, _ := s.Lookup(key)
	if f, ok := toFloat(setting.Value); ok {
		return int(f)
	}
	return 0
}

// String returns a string setting, "" if missing
func (s *Provider) String(key string) string {
	setting, _ := s.Lookup(key)
	str, _ := setting.Value.(string)
	return str
}

// Set validates and stores a value
func (s *Provider) Set(key string, value interface{}) (Setting, error) {
	if key == "" || strings.ContainsAny(key, " \t\n") {
		return Setting{}, fmt.Errorf("invalid setting key %q", key)
	}
	if value == nil {
		return Setting{}, fmt.Errorf("value parameter required")
	}

	var setting Setting
	if val, ok := s.cache.Load(key); ok {
		setting = val.(Setting)
		if err := checkValue(setting, value); err != nil {
			return Setting{}, err
		}
		setting.Value = value
	} else {
		setting = Setting{
			Key:      key,
			Value:    value,
			Type:     inferType(value),
			Category: "custom",
		}
	}

	if s.backend != nil {
		if err := s.backend.Put(store.BucketSettings, key, setting); err != nil {
			return Setting{}, fmt.Errorf("failed to persist setting: %w", err)
		}
	}
	s.cache.Store(key, setting)
	return setting, nil
}

func (s *Provider) get(params map[string]interface{}) (*types.Result, error) {
	key := types.GetString(params, "key")
	if key == "" {
		return types.Failure("key parameter required")
	}

	setting, ok := s.Lookup(key)
	if !ok {
		return types.Failure(fmt.Sprintf("setting not found: %s", key))
	}
	return types.Success(settingData(setting))
}

func (s *Provider) set(params map[string]interface{}) (*types.Result, error) {
	key := types.GetString(params, "key")
	if key == "" {
		return types.Failure("key parameter required")
	}

	if _, err := s.Set(key, params["value"]); err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"stored": true, "key": key})
}

func (s *Provider) list(params map[string]interface{}) (*types.Result, error) {
	category := types.GetString(params, "category")

	settings := []Setting{}
	s.cache.Range(func(_, value interface{}) bool {
		setting := value.(Setting)
		if category == "" || setting.Category == category {
			settings = append(settings, setting)
		}
		return true
	})
	sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })

	return types.Success(map[string]interface{}{"settings": settings, "count": len(settings)})
}

func (s *Provider) reset(params map[string]interface{}) (*types.Result, error) {
	key := types.GetString(params, "key")
	if key == "" {
		return types.Failure("key parameter required")
	}

	setting, ok := s.Lookup(key)
	if !ok {
		return types.Failure(fmt.Sprintf("setting not found: %s", key))
	}

	if s.backend != nil {
		if err := s.backend.Delete(store.BucketSettings, key); err != nil {
			return nil, fmt.Errorf("failed to reset setting: %w", err)
		}
	}
	if setting.Category == "custom" {
		s.cache.Delete(key)
		return types.Success(map[string]interface{}{"reset": true, "key": key, "removed": true})
	}

	setting.Value = setting.Default
	s.cache.Store(key, setting)
	return types.Success(map[string]interface{}{"reset": true, "key": key, "value": setting.Default})
}

// Values returns every setting's current value keyed by setting key
func (s *Provider) Values() map[string]interface{} {
	values := make(map[string]interface{})
	s.cache.Range(func(_, value interface{}) bool {
		setting := value.(Setting)
		values[setting.Key] = setting.Value
		return true
	})
	return values
}

func (s *Provider) exportSettings(params map[string]interface{}) (*types.Result, error) {
	values := s.Values()

	format := strings.ToLower(types.GetString(params, "format"))
	switch format {
	case "", "json":
		return types.Success(map[string]interface{}{"settings": values})
	case "yaml", "yml":
		out, err := yaml.Marshal(values)
		if err != nil {
			return types.Failure(fmt.Sprintf("yaml encode failed: %v", err))
		}
		return types.Success(map[string]interface{}{"settings": values, "format": "yaml", "text": string(out)})
	case "toml":
		out, err := toml.Marshal(values)
		if err != nil {
			return types.Failure(fmt.Sprintf("toml encode failed: %v", err))
		}
		return types.Success(map[string]interface{}{"settings": values, "format": "toml", "text": string(out)})
	default:
		return types.Failure(fmt.Sprintf("unsupported format: %s", format))
	}
}

func (s *Provider) importSettings(params map[string]interface{}) (*types.Result, error) {
	settingsData, ok := params["settings"].(map[string]interface{})
	if !ok {
		text := types.GetString(params, "text")
		if text == "" {
			return types.Failure("settings object or text required")
		}
		decoded, err := decodeText(text, types.GetString(params, "format"))
		if err != nil {
			return types.Failure(err.Error())
		}
		settingsData = decoded
	}

	keys := make([]string, 0, len(settingsData))
	for key := range settingsData {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	count := 0
	failed := map[string]string{}
	for _, key := range keys {
		if _, err := s.Set(key, settingsData[key]); err != nil {
			failed[key] = err.Error()
			continue
		}
		count++
	}

	return types.Success(map[string]interface{}{"imported": count, "failed": failed})
}

func (s *Provider) categories() (*types.Result, error) {
	categorySet := make(map[string]bool)
	s.cache.Range(func(_, value interface{}) bool {
		categorySet[value.(Setting).Category] = true
		return true
	})

	categories := make([]string, 0, len(categorySet))
	for cat := range categorySet {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	return types.Success(map[string]interface{}{"categories": categories})
}

func decodeText(text, format string) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	switch strings.ToLower(format) {
	case "yaml", "yml", "":
		if err := yaml.Unmarshal([]byte(text), &out); err != nil {
			return nil, fmt.Errorf("invalid yaml: %v", err)
		}
	case "toml":
		if err := toml.Unmarshal([]byte(text), &out); err != nil {
			return nil, fmt.Errorf("invalid toml: %v", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	// Both decoders yield integer types; settings hold JSON-style numbers.
	for k, v := range out {
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	return out, nil
}

func settingData(setting Setting) map[string]interface{} {
	data := map[string]interface{}{
		"key":         setting.Key,
		"value":       setting.Value,
		"type":        setting.Type,
		"category":    setting.Category,
		"description": setting.Description,
		"default":     setting.Default,
	}
	if len(setting.Choices) > 0 {
		data["choices"] = setting.Choices
	}
	return data
}

func checkValue(setting Setting, value interface{}) error {
	switch setting.Type {
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s must be a boolean", setting.Key)
		}
	case "string":
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", setting.Key)
		}
		if len(setting.Choices) > 0 && !contains(setting.Choices, str) {
			return fmt.Errorf("%s must be one of %s", setting.Key, strings.Join(setting.Choices, ", "))
		}
	case "number":
		f, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("%s must be a number", setting.Key)
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("%s must be a whole number", setting.Key)
		}
		if setting.Min != nil && f < *setting.Min {
			return fmt.Errorf("%s must be at least %v", setting.Key, *setting.Min)
		}
		if setting.Max != nil && f > *setting.Max {
			return fmt.Errorf("%s must be at most %v", setting.Key, *setting.Max)
		}
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func inferType(value interface{}) string {
	switch value.(type) {
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case string:
		return "string"
	default:
		return "json"
	}
}
