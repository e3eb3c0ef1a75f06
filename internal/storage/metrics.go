package storage

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type appendFailureReason string

const (
	failNonSequential appendFailureReason = "non_sequential"
	failInvalidBlock  appendFailureReason = "invalid_block"
	failCanceled      appendFailureReason = "canceled"
	failStorage       appendFailureReason = "storage"
	failOther         appendFailureReason = "other"
)

type storeMetrics struct {
	appendedBlocks prometheus.Counter
	lastBlock      prometheus.Gauge
	appendFailures *prometheus.CounterVec
}

/*
newStoreMetrics registers block store metrics with "reg". Stores which are
reopened during the lifetime of the process share the collectors registered
by the first one.
*/
func newStoreMetrics(reg prometheus.Registerer) (*storeMetrics, error) {
	m := &storeMetrics{
		appendedBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bftnode",
			Subsystem: "blockstore",
			Name:      "appended_blocks_total",
			Help:      "Number of blocks appended to the store",
		}),
		lastBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bftnode",
			Subsystem: "blockstore",
			Name:      "last_block_number",
			Help:      "Number of the last block in the store",
		}),
		appendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bftnode",
			Subsystem: "blockstore",
			Name:      "append_failures_total",
			Help:      "Number of failed block appends by reason",
		}, []string{"reason"}),
	}

	var err error
	if m.appendedBlocks, err = register(reg, m.appendedBlocks); err != nil {
		return nil, err
	}
	if m.lastBlock, err = register(reg, m.lastBlock); err != nil {
		return nil, err
	}
	if m.appendFailures, err = register(reg, m.appendFailures); err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *storeMetrics) appended(number uint64) {
	if m == nil {
		return
	}
	m.appendedBlocks.Inc()
	m.lastBlock.Set(float64(number))
}

func (m *storeMetrics) setLast(number uint64) {
	if m != nil {
		m.lastBlock.Set(float64(number))
	}
}

func (m *storeMetrics) failed(err error) {
	if m == nil {
		return
	}
	m.appendFailures.WithLabelValues(string(failureReason(err))).Inc()
}

func failureReason(err error) appendFailureReason {
	switch {
	case errors.Is(err, ErrNonSequentialAppend):
		return failNonSequential
	case errors.Is(err, errInvalidBlock):
		return failInvalidBlock
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return failCanceled
	case errors.Is(err, ErrStorage), errors.Is(err, ErrDecode):
		return failStorage
	default:
		return failOther
	}
}
