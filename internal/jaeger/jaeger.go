package jaeger

import (
	"go.opentelemetry.io/otel/exporters/jaeger"
)

// DefaultEndpoint is the collector address inside the compose network.
const DefaultEndpoint = "http://jaeger:14268/api/traces"

func MustNewJaeger(endpoint string) *jaeger.Exporter {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(
		jaeger.WithEndpoint(endpoint),
	))
	if err != nil {
		panic(err)
	}

	return exp
}
