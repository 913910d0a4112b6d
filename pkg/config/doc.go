// Package config loads ddexport's exporter configuration.
//
// Values are resolved in this order, later sources winning:
//
//  1. Defaults (Default)
//  2. A YAML file (LoadFromFile)
//  3. The conventional Datadog variables DD_SERVICE, DD_VERSION, DD_ENV,
//     DD_TAGS, DD_AGENT_HOST and DD_TRACE_AGENT_PORT
//  4. DDEXPORT_* variables (DDEXPORT_SERVICE, DDEXPORT_AGENT_ADDR,
//     DDEXPORT_LOG_LEVEL, ...)
//
// A YAML file looks like:
//
//	service: checkout
//	version: 1.4.2
//	agentAddr: 127.0.0.1:8126
//	encoding: msgpack
//	globalTags:
//	  env: prod
//	uploadTimeout: 2s
//	maxConcurrentUploads: 8
//	log:
//	  level: info
//	  format: json
package config
