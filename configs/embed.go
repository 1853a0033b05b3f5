// Package configs provides embedded configuration templates for chunkdex.
//
// How Configuration Templates Work:
//
// Templates are embedded at build time using Go's //go:embed directive.
// This ensures they are available in ALL distributions:
//   - Source builds (go install)
//   - Binary releases
//
// The templates are used by:
//   - cmd/chunkdex/cmd/init.go - creates .chunkdex.yaml in the project root
//   - cmd/chunkdex/cmd/config.go - creates user config at ~/.config/chunkdex/config.yaml
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/chunkdex/config.yaml)
//  3. Project config (.chunkdex.yaml)
//  4. Environment variables (CHUNKDEX_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
// Changes will be embedded in the next build.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by: `chunkdex config init` at ~/.config/chunkdex/config.yaml
// Contains: Machine-wide defaults like log level and cache sizing.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created by: `chunkdex init` at .chunkdex.yaml in the project root
// Contains: Index-shape settings like embedding dimensions and BM25 tuning
// that every writer and reader of the shared index must agree on.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
