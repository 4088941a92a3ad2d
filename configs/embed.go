// Package configs provides embedded configuration templates for searchmcp.
//
// Templates are embedded at build time using Go's //go:embed directive so
// they are available in all distributions (source builds and binary releases).
//
// Configuration Hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/searchmcp/config.yaml)
//  3. Project config (.searchmcp.yaml)
//  4. Environment variables (SEARCHMCP_*)
//
// To modify templates, edit the .yaml files in this directory and rebuild.
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration.
// Created by: `searchmcp config init` at ~/.config/searchmcp/config.yaml
// Contains: Machine-specific settings like source endpoints and the
// reranker service address.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for project-level configuration.
// Created at .searchmcp.yaml in the project root.
// Contains: Per-project fusion tuning and source overrides that are
// version-controlled with the project.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
