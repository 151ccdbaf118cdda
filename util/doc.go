// Package util holds small generic helpers shared by the container packages.
package util
