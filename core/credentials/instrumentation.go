package credentials

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/lukavetter/aria-core/core/credentials"

var tracer = otel.Tracer(scopeName)
