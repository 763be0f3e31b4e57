// Package decodepool runs WAV decodes off the frame loop.
//
// [Pool.Submit] never blocks: it returns a [Job] immediately and the decode
// waits for one of a bounded number of worker slots in the background. The
// frame loop checks the job once per tick with [Job.Poll].
package decodepool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/internal/observe"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio"
	"github.com/WelcomeToTarkov/TheLongLostHeadsOfYojenkz/pkg/audio/wav"
)

// ErrClosed is the result of jobs submitted after [Pool.Close].
var ErrClosed = errors.New("decodepool: pool closed")

// DecodeFunc turns a named byte buffer into a clip.
type DecodeFunc func(name string, data []byte) (*audio.Clip, error)

// Job is a submitted decode. Its result is available once Poll reports true.
type Job struct {
	name string
	done chan struct{}

	clip    *audio.Clip
	err     error
	elapsed time.Duration
}

// Poll reports whether the decode has finished. It never blocks.
func (j *Job) Poll() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Result returns the decoded clip or the decode error. It must only be
// called after Poll has reported true.
func (j *Job) Result() (*audio.Clip, error) {
	return j.clip, j.err
}

// Elapsed returns the time spent decoding, excluding time queued for a slot.
func (j *Job) Elapsed() time.Duration { return j.elapsed }

// Wait blocks until the job finishes or ctx is done.
func (j *Job) Wait(ctx context.Context) (*audio.Clip, error) {
	select {
	case <-j.done:
		return j.clip, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pool bounds concurrent decodes.
type Pool struct {
	decode  DecodeFunc
	metrics *observe.Metrics
	workers int

	slots  sizedwaitgroup.SizedWaitGroup
	jobs   sync.WaitGroup
	closed atomic.Bool
	queued atomic.Int64
}

// Option configures a [Pool].
type Option func(*Pool)

// WithDecoder replaces [wav.Decode].
func WithDecoder(fn DecodeFunc) Option {
	return func(p *Pool) {
		if fn != nil {
			p.decode = fn
		}
	}
}

// WithMetrics records decode latency on m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pool) {
		if m != nil {
			p.metrics = m
		}
	}
}

// New returns a pool running at most workers decodes at once. A workers
// value of zero or less selects runtime.NumCPU().
func New(workers int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{
		decode:  wav.Decode,
		workers: workers,
		slots:   sizedwaitgroup.New(workers),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int { return p.workers }

// Queued returns the number of submitted jobs that have not finished.
func (p *Pool) Queued() int { return int(p.queued.Load()) }

// Submit schedules a decode of data and returns immediately. The pool keeps a
// reference to data until the job finishes; callers must not modify it.
func (p *Pool) Submit(name string, data []byte) *Job {
	j := &Job{name: name, done: make(chan struct{})}
	if p.closed.Load() {
		j.err = ErrClosed
		close(j.done)
		return j
	}

	p.jobs.Add(1)
	p.queued.Add(1)
	go func() {
		defer p.jobs.Done()
		defer p.queued.Add(-1)
		defer close(j.done)

		p.slots.Add()
		defer p.slots.Done()

		start := time.Now()
		j.clip, j.err = p.run(name, data)
		j.elapsed = time.Since(start)
		observe.RecordDuration(context.Background(), p.metrics.DecodeDuration, j.elapsed)
	}()
	return j
}

// run calls the decoder, turning a panic into an error so a corrupt buffer
// cannot take down the process.
func (p *Pool) run(name string, data []byte) (clip *audio.Clip, err error) {
	defer func() {
		if r := recover(); r != nil {
			clip, err = nil, fmt.Errorf("decodepool: decode %q panicked: %v", name, r)
		}
	}()
	return p.decode(name, data)
}

// Close rejects new jobs and waits for submitted ones to finish.
func (p *Pool) Close() error {
	p.closed.Store(true)
	p.jobs.Wait()
	return nil
}
