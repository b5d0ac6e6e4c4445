package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/filedeck/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/filedeck/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/filedeck/internal/shared/types"
	"github.com/GriffinCanCode/filedeck/internal/shared/utils"
	"go.uber.org/zap"
)

// DefaultDiscoverLimit caps Discover when the caller passes no limit
const DefaultDiscoverLimit = 5

var (
	// ErrInvalidToolID is returned for tool IDs not shaped "<service>.<tool>"
	ErrInvalidToolID = errors.New("invalid tool ID format")
	// ErrServiceNotFound is returned when no provider owns a tool's service
	ErrServiceNotFound = errors.New("service not found")
	// ErrDuplicateService is returned when a service ID is registered twice
	ErrDuplicateService = errors.New("service already registered")
)

// Registry manages service discovery and execution
type Registry struct {
	services sync.Map
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	log      *zap.Logger
}

// Provider interface for service implementations
type Provider interface {
	Definition() types.Service
	Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error)
}

// Option configures a Registry
type Option func(*Registry)

// WithMetrics times every execution into metrics
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTracer records a span for every execution
func WithTracer(t *tracing.Tracer) Option {
	return func(r *Registry) { r.tracer = t }
}

// WithLogger sets the registry logger
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates a new service registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// Register adds a service provider
func (r *Registry) Register(provider Provider) error {
	def := provider.Definition()
	if err := utils.ValidateID(def.ID, "service ID", true); err != nil {
		return err
	}

	if _, loaded := r.services.LoadOrStore(def.ID, provider); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateService, def.ID)
	}
	r.log.Debug("service registered", zap.String("service", def.ID), zap.Int("tools", len(def.Tools)))
	return nil
}

// Unregister removes a service provider
func (r *Registry) Unregister(serviceID string) {
	r.services.Delete(serviceID)
}

// Get retrieves a service by ID
func (r *Registry) Get(serviceID string) (Provider, bool) {
	val, ok := r.services.Load(serviceID)
	if !ok {
		return nil, false
	}
	return val.(Provider), true
}

// List returns registered services ordered by ID, optionally filtered by category
func (r *Registry) List(category *types.Category) []types.Service {
	services := []types.Service{}
	r.services.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		if category == nil || def.Category == *category {
			services = append(services, def)
		}
		return true
	})
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })
	return services
}

// Discover finds relevant services for a given intent
func (r *Registry) Discover(intent string, limit int) []types.Service {
	type scoredService struct {
		service types.Service
		score   float64
	}

	if limit <= 0 {
		limit = DefaultDiscoverLimit
	}
	intentLower := strings.ToLower(intent)
	var results []scoredService

	r.services.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		if score := relevance(intentLower, def); score > 0 {
			results = append(results, scoredService{service: def, score: score})
		}
		return true
	})

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].service.ID < results[j].service.ID
	})

	output := make([]types.Service, 0, limit)
	for i := 0; i < len(results) && i < limit; i++ {
		output = append(output, results[i].service)
	}
	return output
}

// Execute runs a service tool. Routing problems come back both as a failed
// Result and as an error; tool-level validation failures are only a Result.
func (r *Registry) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	serviceID, tool, ok := strings.Cut(toolID, ".")
	if !ok || serviceID == "" || tool == "" || utils.ValidateToolID(toolID, "tool ID", true) != nil {
		return failed(fmt.Errorf("%w: %s", ErrInvalidToolID, toolID))
	}

	provider, found := r.Get(serviceID)
	if !found {
		return failed(fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID))
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	var result *types.Result
	err := r.tracer.Trace(ctx, "tool "+toolID, func(ctx context.Context, span *tracing.Span) error {
		span.SetTag("tool", toolID)
		if user := appCtx.User(); user != "" {
			span.SetTag("user_id", user)
		}

		timer := monitoring.NewTimer(r.metrics, serviceID, tool)
		var err error
		result, err = provider.Execute(ctx, toolID, params, appCtx)

		status := "success"
		switch {
		case err != nil:
			status = "error"
			if r.metrics != nil {
				r.metrics.RecordServiceError(serviceID, tool, "execution")
			}
		case result == nil || !result.Success:
			status = "failure"
		}
		span.SetTag("result", status)
		duration := timer.Stop(status)

		log := tracing.Logger(ctx, r.log)
		log.Debug("tool executed",
			zap.String("tool", toolID),
			zap.String("status", status),
			zap.Duration("duration", duration),
		)
		if err != nil {
			log.Warn("tool execution error", zap.String("tool", toolID), zap.Error(err))
		}
		return err
	})
	return result, err
}

// Stats returns registry statistics
func (r *Registry) Stats() map[string]interface{} {
	var total, totalTools int
	categories := make(map[string]int)

	r.services.Range(func(_, value interface{}) bool {
		def := value.(Provider).Definition()
		total++
		totalTools += len(def.Tools)
		categories[string(def.Category)]++
		return true
	})

	return map[string]interface{}{
		"total_services": total,
		"total_tools":    totalTools,
		"categories":     categories,
	}
}

func relevance(intent string, service types.Service) float64 {
	score := 0.0

	if strings.Contains(intent, service.ID) || strings.Contains(intent, strings.ToLower(service.Name)) {
		score += 10.0
	}

	for _, word := range strings.Fields(strings.ToLower(service.Description)) {
		if len(word) > 2 && strings.Contains(intent, word) {
			score += 5.0
		}
	}

	for _, capability := range service.Capabilities {
		clean := strings.ReplaceAll(strings.ToLower(capability), "_", " ")
		if strings.Contains(intent, clean) {
			score += 3.0
		}
	}

	if strings.Contains(intent, string(service.Category)) {
		score += 2.0
	}

	return score
}

func failed(err error) (*types.Result, error) {
	msg := err.Error()
	return &types.Result{Success: false, Error: &msg}, err
}
