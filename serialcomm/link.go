// serialcomm/link.go
package serialcomm

import (
	"fmt"
	"time"

	"github.com/clint456/copterlink/framing"
	"github.com/rs/zerolog"
)

// linkWorker is the only goroutine that touches the port. It alternates a
// bounded wait on the outbound queue with one bounded read, so a closed queue
// is noticed within one poll interval plus one read timeout.
type linkWorker struct {
	port      Port
	codec     framing.Codec
	demux     framing.Demuxer
	outbound  <-chan framing.Message
	events    chan<- Event
	poll      time.Duration
	deadAfter time.Duration
	stats     *counters
	log       zerolog.Logger
	buf       []byte
	lastRx    time.Time
	// lost runs before a connection error is emitted.
	lost func()
	// released is closed once the port is closed.
	released chan<- struct{}
}

func newLinkWorker(port Port, cfg SerialConfig, c *connection, events chan<- Event, lost func()) *linkWorker {
	return &linkWorker{
		port:      port,
		codec:     cfg.Codec,
		demux:     cfg.Codec.NewDemuxer(),
		outbound:  c.outbound,
		events:    events,
		poll:      cfg.PollInterval,
		deadAfter: cfg.DeadAfter,
		stats:     &c.stats,
		log:       c.log,
		buf:       make([]byte, cfg.ReadBuffer),
		lost:      lost,
		released:  c.released,
	}
}

func (w *linkWorker) run() {
	defer close(w.events)
	defer w.closePort()

	w.log.Debug().Msg("link worker started")
	w.lastRx = time.Now()
	timer := time.NewTimer(w.poll)
	defer timer.Stop()

	for {
		timer.Reset(w.poll)
		select {
		case msg, ok := <-w.outbound:
			if !ok {
				w.log.Debug().Msg("outbound queue closed, link worker stopping")
				return
			}
			if err := w.writeBurst(msg); err != nil {
				w.fail(fmt.Errorf("%w: write: %w", ErrConnectionLost, err))
				return
			}
		case <-timer.C:
		}

		n, err := w.port.Read(w.buf)
		if n > 0 {
			w.stats.rxBytes.Add(uint64(n))
			w.demux.Feed(w.buf[:n], w.handleFrame)
		}
		if err != nil && !isReadTimeout(err) {
			w.fail(fmt.Errorf("%w: read: %w", ErrConnectionLost, err))
			return
		}
		if w.deadAfter > 0 && time.Since(w.lastRx) > w.deadAfter {
			w.fail(fmt.Errorf("%w: %w after %v", ErrConnectionLost, ErrLinkSilent, w.deadAfter))
			return
		}
	}
}

// writeBurst writes msg and whatever else is already queued behind it, in
// queue order.
func (w *linkWorker) writeBurst(msg framing.Message) error {
	for {
		if err := w.write(msg); err != nil {
			return err
		}
		select {
		case next, ok := <-w.outbound:
			if !ok {
				return nil
			}
			msg = next
		default:
			return nil
		}
	}
}

func (w *linkWorker) write(msg framing.Message) error {
	frame, err := w.codec.Encode(msg)
	if err != nil {
		w.stats.frameErrs.Add(1)
		w.log.Warn().Err(err).Type("message", msg).Msg("dropping unencodable message")
		w.emit(Event{Kind: EventFrameError, Err: fmt.Errorf("encode: %w", err)})
		return nil
	}
	if err := writeFull(w.port, frame); err != nil {
		return err
	}
	w.stats.txFrames.Add(1)
	w.stats.txBytes.Add(uint64(len(frame)))
	return nil
}

func (w *linkWorker) handleFrame(frame []byte) {
	msg, err := w.codec.Decode(frame)
	if err != nil {
		w.stats.frameErrs.Add(1)
		w.log.Debug().Err(err).Hex("frame", frame).Msg("discarding malformed frame")
		w.emit(Event{Kind: EventFrameError, Err: err})
		return
	}
	w.stats.rxFrames.Add(1)
	w.lastRx = time.Now()
	w.emit(Event{Kind: EventMessage, Message: msg})
}

func (w *linkWorker) fail(err error) {
	w.log.Error().Err(err).Msg("link failed")
	if w.lost != nil {
		w.lost()
	}
	w.emit(Event{Kind: EventConnectionError, Err: err})
}

func (w *linkWorker) emit(ev Event) {
	ev.At = time.Now()
	w.events <- ev
}

func (w *linkWorker) closePort() {
	if w.released != nil {
		defer close(w.released)
	}
	if err := w.port.Close(); err != nil {
		w.log.Warn().Err(err).Msg("closing port failed")
		return
	}
	w.log.Debug().Msg("port released")
}
