// Package service provides the registry that routes tool calls to providers.
//
// Components:
//   - Registry: central service catalog
//   - Provider: interface for service implementations
//
// Features:
//   - Thread-safe service registration
//   - Category-based filtering
//   - Intent-based discovery with relevance scoring
//   - Tool execution timed into Prometheus
//   - Service statistics
//
// Discovery Algorithm:
//   - Keyword matching in ID, name and description
//   - Capability matching
//   - Category bonus
//   - Score-based ranking, ties broken by service ID
//
// Example Usage:
//
//	registry := service.NewRegistry(service.WithMetrics(metrics))
//	registry.Register(documentsProvider)
//	services := registry.Discover("read a text document", 5)
//	result, err := registry.Execute(ctx, "documents.read", params, appCtx)
package service
