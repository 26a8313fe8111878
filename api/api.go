// Package api embeds the OpenAPI description of the tour manager HTTP API.
// The server serves it at /openapi.yaml.
package api

import _ "embed"

// OpenAPI contains the raw bytes of openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte
