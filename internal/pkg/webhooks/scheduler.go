package webhooks

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/DiveDeskApp/DiveDesk/internal/pkg/metrics/counter"
)

const counterFlushInterval = 5 * time.Minute

// Scheduler drives the dispatcher's scan loop on a fixed interval and
// periodically flushes the buffered delivery counters to the database.
// Deliveries within one scan run strictly one after another; there is one
// scheduler per process.
type Scheduler struct {
	dispatcher *Dispatcher
	interval   time.Duration
	batchSize  int
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewScheduler creates a scheduler over the given dispatcher. A non-positive
// interval falls back to DefaultScanInterval.
func NewScheduler(dispatcher *Dispatcher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &Scheduler{
		dispatcher: dispatcher,
		interval:   interval,
		batchSize:  DefaultBatchSize,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the scan loop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	log.Infof("[Webhooks] Starting delivery scheduler (interval=%s)", s.interval)

	s.wg.Add(1)
	go s.run()
}

// Stop stops the scan loop and waits for an in-flight scan to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	log.Info("[Webhooks] Stopping delivery scheduler...")
	close(s.stopCh)
	s.running = false
	s.wg.Wait()
	log.Info("[Webhooks] Delivery scheduler stopped")
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	flushTicker := time.NewTicker(counterFlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-s.stopCh:
			// Final flush so buffered counters survive a shutdown.
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[Webhooks] final counter flush failed: %v", err)
			}
			return
		case <-ticker.C:
			result := s.dispatcher.ProcessDue(s.batchSize)
			if result.Succeeded+result.Failed > 0 {
				log.Infof("[Webhooks] scan complete: %d succeeded, %d failed", result.Succeeded, result.Failed)
			}
		case <-flushTicker.C:
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[Webhooks] counter flush failed: %v", err)
			}
		}
	}
}
