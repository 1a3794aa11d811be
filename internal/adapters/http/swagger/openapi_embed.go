package swagger

import _ "embed"

// OpenAPI is the peloton API document served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte
