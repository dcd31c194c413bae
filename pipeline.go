package main

import (
	"time"

	"earshot/audio"
	"earshot/log"
)

// pipelineQueue bounds how many capture callbacks may queue before the
// pipeline sheds load. Dropping stale audio beats stalling the capture
// callback thread.
const pipelineQueue = 64

// pipeline drains one source's capture callbacks on a dedicated
// goroutine: window aggregation, routing, then send aggregation. The
// aggregator is touched only from that goroutine.
type pipeline struct {
	source audio.Source
	app    *App
	agg    *audio.Aggregator

	in      chan []byte
	resetCh chan time.Time
	quit    chan struct{}
	done    chan struct{}

	levelEvery int
	levelCount int
}

func newPipeline(source audio.Source, app *App) *pipeline {
	return &pipeline{
		source:  source,
		app:     app,
		agg:     audio.NewAggregator(source, time.Now()),
		in:      make(chan []byte, pipelineQueue),
		resetCh: make(chan time.Time, 1),
		// Audio level UI updates once per ~4 windows.
		levelEvery: 4,
	}
}

func (p *pipeline) start() {
	p.quit = make(chan struct{})
	p.done = make(chan struct{})
	go p.run()
}

// ingest hands raw capture bytes to the pipeline goroutine. Drops the
// chunk when the queue is full.
func (p *pipeline) ingest(data []byte) {
	select {
	case p.in <- data:
	default:
		log.Warnf("pipeline queue full, dropping %d bytes (%s)", len(data), p.source)
	}
}

func (p *pipeline) run() {
	defer close(p.done)
	for {
		select {
		case <-p.quit:
			return
		case now := <-p.resetCh:
			p.agg.Reset(now)
		case data := <-p.in:
			p.process(data)
		}
	}
}

func (p *pipeline) process(data []byte) {
	samples := audio.DecodePCM16(data)
	now := time.Now()

	for _, win := range p.agg.Push(samples) {
		d := p.app.router.Route(audio.Block{
			Source:     p.source,
			Samples:    win,
			Time:       now,
			SampleRate: audio.SampleRate,
		})
		if d.Forward {
			p.agg.Accept(win)
		}

		p.levelCount++
		if p.levelCount >= p.levelEvery {
			p.levelCount = 0
			p.app.sink.AudioLevel(p.source, d.VAD.RMS)
		}
	}

	// Timeout flushes piggyback on ingest; capture callbacks keep
	// arriving even through silence, so the check runs continuously.
	if p.agg.FlushDue(now) {
		if unit := p.agg.Flush(now); unit != nil {
			p.app.sendAudio(p.source, unit)
		}
	}
}

// reset asks the pipeline goroutine to drop buffered audio. Safe to
// call whether or not the pipeline is running.
func (p *pipeline) reset(now time.Time) {
	select {
	case p.resetCh <- now:
	default:
	}
}

func (p *pipeline) halt() {
	if p.quit == nil {
		return
	}
	select {
	case <-p.quit:
	default:
		close(p.quit)
	}
	<-p.done
}
