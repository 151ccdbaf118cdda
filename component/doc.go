// Package component defines the lifecycle interfaces of the parts an
// application starts and stops: the container, telemetry exporters and the
// like.
//
// A Registry starts components in registration order and stops them in
// reverse order. Components may implement Describable to appear in the
// startup summary.
package component
