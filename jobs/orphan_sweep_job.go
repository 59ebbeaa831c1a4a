package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"form-analytics-server/metrics"
)

// OrphanStore is the slice of the store the sweeper needs.
type OrphanStore interface {
	DeleteOrphanResponses(ctx context.Context) (int64, error)
}

// OrphanSweepJob periodically deletes responses whose form is gone. It
// cleans up after form deletions that could not run in one transaction.
type OrphanSweepJob struct {
	store    OrphanStore
	interval time.Duration
	log      *logrus.Entry

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewOrphanSweepJob(store OrphanStore, interval time.Duration, log *logrus.Entry) *OrphanSweepJob {
	return &OrphanSweepJob{
		store:    store,
		interval: interval,
		log:      log,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop
func (j *OrphanSweepJob) Start() {
	go j.run()
	j.log.WithField("interval", j.interval.String()).Info("🚀 Orphan sweep job started")
}

// Stop ends the loop and waits for an in-flight sweep to finish
func (j *OrphanSweepJob) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
		<-j.done
		j.log.Info("🛑 Orphan sweep job stopped")
	})
}

func (j *OrphanSweepJob) run() {
	defer close(j.done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			j.SweepOnce(ctx)
			cancel()
		case <-j.stopChan:
			return
		}
	}
}

// SweepOnce runs a single pass and returns how many responses were removed.
func (j *OrphanSweepJob) SweepOnce(ctx context.Context) int64 {
	removed, err := j.store.DeleteOrphanResponses(ctx)
	if err != nil {
		j.log.WithError(err).Error("❌ Error sweeping orphan responses")
		return 0
	}
	if removed > 0 {
		metrics.OrphansSwept.Add(float64(removed))
		j.log.WithField("removed", removed).Info("🧹 Removed orphan responses")
	}
	return removed
}
