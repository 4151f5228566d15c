// Package klog is the kernel's logger: terse, prefixed lines with no
// timestamps and no structured fields, the way the original MaahiOS
// sources log to VGA text and to COM1 during bringup and IRQ handling
// (original_source/syscalls/syscall_handler.c's serial_print/serial_hex,
// original_source/managers/irq/irq_manager.c's pic_remap diagnostics).
// There is no clock reliable enough to timestamp with until well into
// bringup, so lines are plain text, optionally hex-annotated.
package klog

import "fmt"

// Sink receives the rendered log lines. The text console and the serial
// port each implement Sink (internal/drivers.Console satisfies it via
// PutString; cmd/kernel's serialSink writes it to COM1).
type Sink interface {
	PutString(s string)
}

// Logger fans a single log call out to every attached sink — console and
// serial at once, matching the original's habit of printing the same
// diagnostic to both.
type Logger struct {
	sinks []Sink
}

// New returns a Logger writing to all of sinks. A nil or empty sinks slice
// is valid and makes every call a no-op (used before any sink is brought
// up, and in tests that don't care about log output).
func New(sinks ...Sink) *Logger {
	return &Logger{sinks: sinks}
}

// Attach adds another sink after construction, e.g. once the serial port
// has been initialized partway through bringup.
func (l *Logger) Attach(s Sink) {
	l.sinks = append(l.sinks, s)
}

// Line writes s followed by a newline to every sink.
func (l *Logger) Line(s string) {
	l.write(s + "\n")
}

// Linef formats like fmt.Sprintf and writes the result followed by a
// newline.
func (l *Logger) Linef(format string, args ...interface{}) {
	l.Line(fmt.Sprintf(format, args...))
}

// Hex32 writes prefix directly followed by "0xXXXXXXXX" (no separator is
// added) — the original's print_hex/serial_hex
// helpers, generalized to one call.
func (l *Logger) Hex32(prefix string, val uint32) {
	l.Linef("%s0x%08X", prefix, val)
}

func (l *Logger) write(s string) {
	for _, sink := range l.sinks {
		sink.PutString(s)
	}
}
