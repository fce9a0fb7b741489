// Package progressbar implements functionality of printing a progress
// bar to a terminal
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar is a progress bar that must be manually managed. That
// is, Display must be called whenever an updated progress bar should
// be printed.
//
// ProgressBar does not use concurrency.
type ProgressBar struct {
	out       io.Writer
	label     string
	width     int
	max       int
	current   int
	startTime time.Time
}

// New returns a new ProgressBar that is width characters wide, writes
// to out and reaches 100% after max calls to Increment
func New(out io.Writer, label string, width, max int) *ProgressBar {
	if max < 1 {
		max = 1
	}
	return &ProgressBar{
		out:       out,
		label:     label,
		width:     width,
		max:       max,
		startTime: time.Now(),
	}
}

// Increment increments the internal progress counter
func (p *ProgressBar) Increment() {
	if p.current < p.max {
		p.current++
	}
}

// Fraction returns the fraction of the work done
func (p *ProgressBar) Fraction() float64 {
	return float64(p.current) / float64(p.max)
}

// String renders the bar
func (p *ProgressBar) String() string {
	var bar strings.Builder
	filled := int(p.Fraction() * float64(p.width))

	bar.WriteString(p.label)
	bar.WriteString(" |")
	bar.WriteString(strings.Repeat("█", filled))
	bar.WriteString(strings.Repeat(" ", p.width-filled))
	fmt.Fprintf(&bar, "| [%.2f%% | elapsed: %v]", p.Fraction()*100,
		time.Since(p.startTime).Truncate(time.Second))
	return bar.String()
}

// Display overwrites the current terminal line with the bar
func (p *ProgressBar) Display() {
	fmt.Fprintf(p.out, "\r\033[K%v", p)
}

// Close finishes the line of the bar
func (p *ProgressBar) Close() {
	fmt.Fprintln(p.out)
}
