// Package config loads pachinko's runtime settings.
//
// Settings are layered, later layers winning:
//  1. Built-in defaults (Default)
//  2. An optional CUE file, checked against the #Config schema
//  3. PACHINKO_* environment variables
//
// The result is validated once, after all layers are applied.
package config
