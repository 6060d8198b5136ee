package repository

import (
	"errors"
	"time"

	"github.com/anuntech/metas/pkg/metrics"
)

// Track records the latency of one repository call and counts it as failed
// when *err holds anything but ErrNotFound. Meant to be deferred:
//
//	defer repository.Track("postgres", "list_tiers", time.Now(), &err)
func Track(backend, operation string, start time.Time, err *error) {
	metrics.RecordRepositoryLatency(backend, operation, float64(time.Since(start).Microseconds())/1000)
	if err != nil && *err != nil && !errors.Is(*err, ErrNotFound) {
		metrics.RecordRepositoryError(backend, operation)
	}
}
