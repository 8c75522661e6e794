package main

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// barSink draws encode progress as a terminal bar.
type barSink struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	done bool
}

func newBarSink(w io.Writer) *barSink {
	return &barSink{bar: progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("encoding"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { io.WriteString(w, "\n") }),
	)}
}

func (b *barSink) Report(percent float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	_ = b.bar.Set(int(percent))
	if percent >= 100 {
		b.done = true
	}
}

func (b *barSink) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.done {
		_ = b.bar.Exit()
	}
}
