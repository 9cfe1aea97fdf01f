package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const emitTimeout = 2 * time.Second

type Dispatcher struct {
	sink      Sink
	logger    *zap.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewDispatcher(sink Sink, bufferSize int, logger *zap.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	d := &Dispatcher{
		sink:   sink,
		logger: logger,
		ch:     make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case e := <-d.ch:
			d.emit(e)
		case <-d.done:
			for {
				select {
				case e := <-d.ch:
					d.emit(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) emit(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("audit sink panicked", zap.String("panic", fmt.Sprint(p)))
		}
	}()
	if err := d.sink.Emit(ctx, e); err != nil {
		d.logger.Warn("audit sink failed", zap.String("event_id", e.ID), zap.Error(err))
	}
}

// Record enqueues e, dropping it when the buffer is full or the dispatcher
// is closed.
func (d *Dispatcher) Record(e Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	select {
	case d.ch <- e:
	default:
		d.dropped.Add(1)
	}
}

// Close stops accepting events and drains what is already buffered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
