// Package config provides configuration management for the wiretap.
//
// Configuration is read from $WIRETAP_CONFIG_PATH/wiretap.yml (default
// /etc/msl-wiretap/wiretap.yml) and overridden by environment variables
// named after each attribute, e.g. WIRETAP_REQUIRE_VERIFIED.
//
// # Environment Only
//
//   - WIRETAP_DATA_KEY: base64 AES-256 key protecting the keystore
//   - WIRETAP_LOG_LEVEL: set to "debug" for database query logging
//   - DATABASE_URL: keystore database connection
//   - AUDIT_DATABASE_URL: optional audit event database
package config
