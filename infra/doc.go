// Package infra contains technical adapters such as the push gateway,
// broker bridges, stores and metrics exporters. These packages should
// depend only on the interfaces defined in the core packages.
package infra
