// Package progress reports the steps of a multi-call CLI operation (for
// example the three describes behind "mount-target verify") when --verbose
// is set.
//
// On a terminal the current step is shown on one line with an animated
// marker that is overwritten as steps advance. Otherwise (pipes, CI,
// EFSIM_NO_SPINNER=1) every step is a plain timestamped line:
//
//	[12:34:56] Describing network interface eni-0a1b...
//
// A quiet Reporter discards everything, which is what --json and
// non-verbose runs use. All methods are safe to call in any order.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Frames are the markers cycled through in interactive mode.
var Frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const tickInterval = 80 * time.Millisecond

// Reporter prints step progress.
type Reporter struct {
	// Interactive selects the overwriting display. Set by New from TTY
	// detection; tests override it.
	Interactive bool
	Writer      io.Writer

	mu      sync.Mutex
	step    string
	steps   int
	running bool
	stop    chan struct{}
	done    chan struct{}
	frame   int
}

// New returns a Reporter writing to w (os.Stderr when nil). Interactive mode
// is enabled when stderr is a terminal and EFSIM_NO_SPINNER is not "1".
func New(w io.Writer) *Reporter {
	if w == nil {
		w = os.Stderr
	}
	interactive := false
	if os.Getenv("EFSIM_NO_SPINNER") != "1" {
		interactive = term.IsTerminal(int(os.Stderr.Fd()))
	}
	return &Reporter{Interactive: interactive, Writer: w}
}

// ForCommand returns a Reporter that writes to w when verbose is set and
// jsonOutput is not, and a quiet one otherwise.
func ForCommand(w io.Writer, verbose, jsonOutput bool) *Reporter {
	if !verbose || jsonOutput {
		return &Reporter{Writer: io.Discard}
	}
	return New(w)
}

// Step announces the next step.
func (r *Reporter) Step(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.step = msg
	r.steps++
	if !r.Interactive {
		r.writeLine(msg)
		return
	}
	if !r.running {
		r.stop = make(chan struct{})
		r.done = make(chan struct{})
		r.running = true
		go r.spin()
	}
}

// Steps returns how many steps have been announced.
func (r *Reporter) Steps() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.steps
}

// Done ends the operation with a success line.
func (r *Reporter) Done(format string, args ...any) {
	r.finish("✓ ", fmt.Sprintf(format, args...))
}

// Fail ends the operation with a failure line.
func (r *Reporter) Fail(format string, args ...any) {
	r.finish("✗ ", fmt.Sprintf(format, args...))
}

func (r *Reporter) finish(mark, msg string) {
	r.mu.Lock()
	if r.running {
		close(r.stop)
		r.running = false
		r.mu.Unlock()
		<-r.done
		r.mu.Lock()
		fmt.Fprint(r.Writer, "\r\033[K")
		fmt.Fprintln(r.Writer, mark+msg)
		r.mu.Unlock()
		return
	}
	defer r.mu.Unlock()
	if msg == "" {
		return
	}
	if r.Interactive {
		fmt.Fprintln(r.Writer, mark+msg)
		return
	}
	r.writeLine(msg)
}

func (r *Reporter) spin() {
	defer close(r.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			frame := Frames[r.frame%len(Frames)]
			r.frame++
			msg := r.step
			r.mu.Unlock()
			fmt.Fprintf(r.Writer, "\r\033[K%s %s", frame, msg)
		}
	}
}

// writeLine must be called with mu held.
func (r *Reporter) writeLine(msg string) {
	fmt.Fprintf(r.Writer, "[%s] %s\n", time.Now().Format("15:04:05"), msg)
}
