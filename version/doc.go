// Package version reports the build version of a container application.
//
// Version, commit and build time are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/ioc/version.Version=1.0.0"
//
// bootstrap uses Resolve when the configuration does not name a version.
package version
