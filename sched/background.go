package sched

import (
	"bldcservo/encoder"
	"bldcservo/register"
)

// CommandServer is the narrow register.CLI surface the background loop
// drains each tick.
type CommandServer interface {
	HandleLine(line string) string
}

// LineSource yields one pending input line at a time, or ok=false when
// there is nothing queued. The transport-specific adapter (USB-CDC,
// UART) implements this outside this package.
type LineSource interface {
	NextLine() (line string, ok bool)
}

// LineSink writes one response line out to the transport.
type LineSink interface {
	WriteLine(line string)
}

// BackgroundLoop owns the cooperative (non-ISR) work: polling encoder
// sources that need an explicit Poll call, draining the command
// server, and ticking the mode machine's 1ms-cadence watchdog.
type BackgroundLoop struct {
	pollers []Poller
	server  CommandServer
	lines   LineSource
	sink    LineSink

	controller *Controller

	tickAccumulator float32
	tickPeriod      float32 // seconds, e.g. 0.001 for 1ms
}

// NewBackgroundLoop builds a background loop driving pollers and
// servicing a command server, with controller receiving the mode
// watchdog tick and the active-encoder count.
func NewBackgroundLoop(controller *Controller, pollers []Poller, server CommandServer, lines LineSource, sink LineSink, tickPeriod float32) *BackgroundLoop {
	return &BackgroundLoop{
		pollers: pollers, server: server, lines: lines, sink: sink,
		controller: controller, tickPeriod: tickPeriod,
	}
}

// RunOnce performs one cooperative pass: poll every source, drain one
// pending command line, and advance the watchdog tick if the
// accumulated elapsed time has crossed tickPeriod. dt is the measured
// wall-clock time since the previous call.
func (b *BackgroundLoop) RunOnce(dt float32) {
	active := 0
	for _, p := range b.pollers {
		p.Poll()
		if src, ok := p.(encoder.Source); ok && !src.Latest().Active {
			continue
		}
		active++
	}
	if b.controller != nil {
		b.controller.ReportActiveEncoders(active)
	}

	if b.lines != nil && b.server != nil {
		if line, ok := b.lines.NextLine(); ok {
			reply := b.server.HandleLine(line)
			if b.sink != nil {
				b.sink.WriteLine(reply)
			}
		}
	}

	b.tickAccumulator += dt
	if b.tickAccumulator >= b.tickPeriod {
		b.tickAccumulator -= b.tickPeriod
		if b.controller != nil && b.controller.cfg.ModeMachine != nil {
			b.controller.cfg.ModeMachine.Tick(b.tickPeriod)
		}
	}
}

var _ CommandServer = (*register.CLI)(nil)
