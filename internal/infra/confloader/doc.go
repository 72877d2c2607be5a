// Package confloader provides the configuration loading mechanism.
//
// This package implements a configuration loader on top of koanf:
//
//   - Sources: YAML files, MINIKV_* environment variables, flag maps
//   - Type safety: unmarshaling into typed structs
//   - Defaults: fields absent from every source keep the value they had
//     in the target struct
//   - Watch support: fsnotify-based notification on file changes
//
// Priority (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables
//  3. Configuration file
//  4. Default values
package confloader
