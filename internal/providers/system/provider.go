package system

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/filedeck/internal/domain/doctree"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
)

const (
	defaultBufferSize = 1000
	defaultLogLimit   = 100
	maxLogMessage     = 4096
)

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Counter reports a live count
type Counter interface {
	Count() int
}

// LevelController reads and changes the server log level
type LevelController interface {
	Level() string
	SetLevel(level string) error
}

// Options configures a Provider
type Options struct {
	Version    string
	DataDir    string
	Tree       doctree.Tree // optional
	Sessions   Counter      // open edit sessions, optional
	Clients    Counter      // stream clients, optional
	Levels     LevelController
	BufferSize int
	Logger     *zap.Logger
	Now        func() time.Time
}

// Provider implements server information and client diagnostics
type Provider struct {
	opts      Options
	startTime time.Time
	logs      *CircularLogBuffer
	log       *zap.Logger
}

// NewProvider creates a system provider
func NewProvider(opts Options) *Provider {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		opts:      opts,
		startTime: opts.Now(),
		logs:      NewCircularLogBuffer(opts.BufferSize),
		log:       log,
	}
}

// Definition returns service metadata
func (s *Provider) Definition() types.Service {
	return types.Service{
		ID:          "system",
		Name:        "System Service",
		Description: "Server information, time and client diagnostics",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"info",
			"logging",
			"ping",
		},
		Tools: []types.Tool{
			{
				ID:          "system.info",
				Name:        "System Info",
				Description: "Get server version, runtime and workload information",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.time",
				Name:        "Current Time",
				Description: "Get current server time",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.log",
				Name:        "Log Message",
				Description: "Record a client diagnostic message",
				Parameters: []types.Parameter{
					{Name: "message", Type: "string", Description: "Log message", Required: true},
					{Name: "level", Type: "string", Description: "debug, info, warn or error (default info)", Required: false},
					{Name: "context", Type: "object", Description: "Structured fields", Required: false},
				},
				Returns: "boolean",
			},
			{
				ID:          "system.getLogs",
				Name:        "Get Logs",
				Description: "Retrieve the caller's recent diagnostic messages",
				Parameters: []types.Parameter{
					{Name: "limit", Type: "number", Description: "Number of entries (default 100)", Required: false},
					{Name: "level", Type: "string", Description: "Filter by level", Required: false},
				},
				Returns: "array",
			},
			{
				ID:          "system.logLevel",
				Name:        "Log Level",
				Description: "Get the server log level, or change it when signed in",
				Parameters: []types.Parameter{
					{Name: "level", Type: "string", Description: "New level: debug, info, warn or error", Required: false},
				},
				Returns: "object",
			},
			{
				ID:          "system.ping",
				Name:        "Ping",
				Description: "Test service availability",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a system operation
func (s *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "system.info":
		return s.info()
	case "system.time":
		return s.currentTime()
	case "system.log":
		return s.record(params, appCtx)
	case "system.getLogs":
		return s.getLogs(params, appCtx)
	case "system.logLevel":
		return s.logLevel(params, appCtx)
	case "system.ping":
		return s.ping()
	default:
		return types.Failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (s *Provider) info() (*types.Result, error) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	data := map[string]interface{}{
		"version":        s.opts.Version,
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"cpus":           runtime.NumCPU(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_alloc":   m.Alloc / 1024 / 1024, // MB
		"memory_sys":     m.Sys / 1024 / 1024,   // MB
		"uptime_seconds": s.opts.Now().Sub(s.startTime).Seconds(),
	}
	if s.opts.DataDir != "" {
		data["data_dir"] = s.opts.DataDir
	}
	if s.opts.Tree != nil {
		data["document_roots"] = len(s.opts.Tree.Roots())
	}
	if s.opts.Sessions != nil {
		data["edit_sessions"] = s.opts.Sessions.Count()
	}
	if s.opts.Clients != nil {
		data["stream_clients"] = s.opts.Clients.Count()
	}
	if s.opts.Levels != nil {
		data["log_level"] = s.opts.Levels.Level()
	}
	return types.Success(data)
}

func (s *Provider) currentTime() (*types.Result, error) {
	now := s.opts.Now()
	return types.Success(map[string]interface{}{
		"timestamp": now.Unix(),
		"iso":       now.UTC().Format(time.RFC3339),
		"unix_ms":   now.UnixMilli(),
	})
}

func (s *Provider) record(params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	message := types.GetString(params, "message")
	if err := utils.ValidateString(message, "message", 1, maxLogMessage, true); err != nil {
		return types.Failure(err.Error())
	}

	level := strings.ToLower(types.GetString(params, "level"))
	if level == "" {
		level = "info"
	}
	if !logLevels[level] {
		return types.Failure(fmt.Sprintf("invalid level %q", level))
	}

	entry := &LogEntry{
		Timestamp: s.opts.Now().UTC(),
		Level:     level,
		Message:   message,
		UserID:    appCtx.User(),
	}
	if fields, ok := params["context"].(map[string]interface{}); ok && len(fields) > 0 {
		entry.Context = fields
	}
	s.logs.Add(entry)

	fields := []zap.Field{zap.String("user_id", entry.UserID), zap.Any("context", entry.Context)}
	switch level {
	case "debug":
		s.log.Debug(message, fields...)
	case "warn":
		s.log.Warn(message, fields...)
	case "error":
		s.log.Error(message, fields...)
	default:
		s.log.Info(message, fields...)
	}

	return types.Success(map[string]interface{}{"logged": true})
}

// getLogs returns only the caller's entries; anonymous callers see anonymous entries
func (s *Provider) getLogs(params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	limit := types.GetInt(params, "limit", defaultLogLimit)
	if limit <= 0 {
		limit = defaultLogLimit
	}
	level := strings.ToLower(types.GetString(params, "level"))
	user := appCtx.User()

	logs := s.logs.GetRecent(limit, func(e *LogEntry) bool {
		return e.UserID == user && (level == "" || e.Level == level)
	})

	return types.Success(map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

func (s *Provider) logLevel(params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	if s.opts.Levels == nil {
		return types.Failure("log level control unavailable")
	}

	level := strings.ToLower(types.GetString(params, "level"))
	if level == "" {
		return types.Success(map[string]interface{}{"level": s.opts.Levels.Level()})
	}
	if appCtx.User() == "" {
		return types.Failure("authentication required")
	}
	if !logLevels[level] {
		return types.Failure(fmt.Sprintf("invalid level %q", level))
	}

	previous := s.opts.Levels.Level()
	if err := s.opts.Levels.SetLevel(level); err != nil {
		return types.Failure(err.Error())
	}
	s.log.Warn("Log level changed",
		zap.String("user_id", appCtx.User()),
		zap.String("from", previous),
		zap.String("to", level),
	)
	return types.Success(map[string]interface{}{"level": level, "previous": previous})
}

func (s *Provider) ping() (*types.Result, error) {
	return types.Success(map[string]interface{}{
		"pong":      true,
		"timestamp": s.opts.Now().Unix(),
	})
}
