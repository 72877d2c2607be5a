// Package output renders server replies for minikv-cli.
//
// Three formats are supported:
//
//   - text: redis-cli style, e.g. (integer) 1, (nil), 1) "a"
//   - json: indented JSON of the reply converted to plain values
//   - yaml: YAML of the same conversion
package output
