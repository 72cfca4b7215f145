package hub

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/davidl09/car-sim/internal/hub"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
