// Package observability provides OpenTelemetry tracing and metrics for
// instance construction.
//
// Tracing and metrics providers are configured from config.Config:
//
//	tp, err := observability.InitTracer(ctx, observability.TracerConfigFrom(cfg))
//	defer tp.Shutdown(ctx)
//
//	mp, err := observability.InitMeter(ctx, observability.MeterConfigFrom(cfg))
//	defer mp.Shutdown(ctx)
//
// A CreationObserver attached to a registry records one span per
// construction, nested the way constructions request each other:
//
//	metrics, err := observability.NewMetrics(observability.Meter("ioc"))
//	obs := observability.NewCreationObserver(observability.WithMetrics(metrics))
//	reg := registry.New(registry.WithCreationListener(obs))
//
// Health checks:
//
//	health := observability.CheckService(ctx, "my-service", "1.0.0", components)
package observability
