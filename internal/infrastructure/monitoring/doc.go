/*
Package monitoring exposes FileDeck's Prometheus metrics under the
"filedeck" namespace.

Each Metrics value owns its registry, so tests and servers never share
collectors. HTTP requests are recorded by Middleware with the route template
as the path label. Upgraded /stream connections are skipped there and tracked
by the websocket gauge and message counter instead. Service tool calls are
timed with Timer by the service registry.

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
