// Package shutdown provides graceful shutdown for tokstash-server.
//
// Hooks registered with OnShutdown run in reverse order once SIGINT or
// SIGTERM arrives, Trigger is called, or the context passed to Wait is
// cancelled. All hooks share one timeout.
//
// Usage:
//
//	h := shutdown.NewHandler(15*time.Second, logger)
//	h.OnShutdown("http", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
