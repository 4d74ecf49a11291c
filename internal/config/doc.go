// Package config handles configuration loading for charla.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	whatsapp:
//	  access_token: "${CHARLA_WA_TOKEN}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sessions:
//	  ttl: "24h"
//	  sweep_interval: "1h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: ":8080"   # webhook and health endpoints
//
// Database:
//
//	database:
//	  path: "/var/lib/charla/charla.db"
//
// WhatsApp Cloud API:
//
//	whatsapp:
//	  verify_token: "${CHARLA_VERIFY_TOKEN}"    # webhook handshake secret
//	  app_secret: "${CHARLA_APP_SECRET}"        # optional; enables signature checks
//	  access_token: "${CHARLA_WA_TOKEN}"
//	  phone_number_id: "123456789"
//
// Completion/transcription endpoint:
//
//	llm:
//	  enabled: true
//	  base_url: "https://api.openai.com"
//	  api_key: "${CHARLA_LLM_KEY}"
//	  model: "gpt-4o-mini"
//	  timeout: "15s"
//
// Background worker pool:
//
//	workers:
//	  count: 4
//	  queue_size: 64
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a path:
//
//	cfg, err := config.Load("/etc/charla/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
