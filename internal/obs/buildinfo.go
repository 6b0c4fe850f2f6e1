package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var buildInfoOnce sync.Once

// InitBuildInfo exposes version/commit as a constant gauge labelled metric.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build metadata; value is always 1.",
		}, []string{"version", "commit"})
		prometheus.MustRegister(g)
		g.WithLabelValues(version, commit).Set(1)
	})
}
