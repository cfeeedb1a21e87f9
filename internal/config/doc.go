// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for sermonchat.
//
// TOML is the primary format; YAML and JSON files are accepted by extension.
//
// # Key Types
//
//   - Config: the complete configuration
//   - APIConfig, AuthConfig: where the service is and how to authenticate
//   - SessionConfig: cancellation and end-of-stream behaviour of a chat session
//   - StorageConfig: local transcript cache driver and location
//   - LoggingConfig, UIConfig, ServerConfig
//
// # Configuration Precedence
//
// Highest first:
//   - Environment variables (SERMONCHAT_*), including those from a .env file
//   - ~/.sermonchat/config.toml (or config.yaml, config.yml, config.json)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client, err := cloud.New(cfg.API.BaseURL)
package config
