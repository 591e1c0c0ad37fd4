package clock

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/autodash/simulator/internal/clock"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
