package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// New returns the recorder named by driver: "prometheus", "expvar" or
// "none" (also the default). reg is only used by the Prometheus recorder.
func New(driver string, reg prometheus.Registerer) (Recorder, error) {
	switch driver {
	case "", "none":
		return Noop{}, nil
	case "prometheus":
		return NewPrometheusRecorder(reg), nil
	case "expvar":
		return NewExpvarRecorder(""), nil
	}
	return nil, fmt.Errorf("unknown metrics driver %q", driver)
}
