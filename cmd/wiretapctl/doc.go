// Command wiretapctl decodes the MSL tokens of captured messages.
//
// Tokens are decoded with the crypto context of one entity, loaded from a
// YAML keys file or from the database keystore.
//
// # Quick Start
//
//	# Decode a captured message header with a keys file
//	wiretapctl inspect --keys-file keys.yml --key-id device-1 capture.json
//
//	# Or keep keys in the database
//	export WIRETAP_DATA_KEY="$(wiretapctl data-key generate)"
//	wiretapctl db migrate
//	WIRETAP_KEY_PSK=... wiretapctl key derive device-1
//	wiretapctl inspect --key-id device-1 capture.json
//
//	# Serve the inspection API
//	wiretapctl server
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string of the keystore
//   - WIRETAP_DATA_KEY: Base64-encoded 256-bit key protecting stored keys
//   - WIRETAP_KEY_PSK: Base64-encoded pre-shared key for "key derive"
//   - WIRETAP_CONFIG_PATH: directory holding wiretap.yml
//   - WIRETAP_LOG_LEVEL: debug enables SQL logging
//   - PORT: Server port (default: 8000)
package main
