package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterMetrics exposes pebble internals as prometheus gauges. Values
// are read lazily from db.Metrics() on each scrape.
func (s *Store) RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "inboxd_store_disk_usage_bytes",
		Help: "Estimated disk space used by the pebble database.",
	}, func() float64 {
		if s.db == nil {
			return 0
		}
		return float64(s.db.Metrics().DiskSpaceUsage())
	}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "inboxd_store_wal_size_bytes",
		Help: "Size of the pebble write-ahead log.",
	}, func() float64 {
		if s.db == nil {
			return 0
		}
		return float64(s.db.Metrics().WAL.Size)
	}))
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "inboxd_store_l0_files",
		Help: "Number of files in pebble level 0.",
	}, func() float64 {
		if s.db == nil {
			return 0
		}
		return float64(s.db.Metrics().Levels[0].NumFiles)
	}))
}
