// Package console provides a standard interface for user- and machine-facing
// output. It abstracts switching between human and machine modes (no color,
// no interactive prompts) the way the rest of this stack's commands expect.
package console

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/logrusorgru/aurora"
)

// Console is a standardized interface for CLI UI: level-prefixed stderr
// logging, and unprefixed stdout/stderr output for primary command results.
type Console struct {
	Color     bool
	IsMachine bool
	Level     Level
	mu        sync.Mutex
}

func (c *Console) Debug(msg string, v ...interface{}) { c.log(DebugLevel, msg, v...) }
func (c *Console) Info(msg string, v ...interface{})  { c.log(InfoLevel, msg, v...) }
func (c *Console) Warn(msg string, v ...interface{})  { c.log(WarnLevel, msg, v...) }
func (c *Console) Error(msg string, v ...interface{}) { c.log(ErrorLevel, msg, v...) }

// Fatal logs at FatalLevel and exits the process.
func (c *Console) Fatal(msg string, v ...interface{}) {
	c.log(FatalLevel, msg, v...)
	os.Exit(1)
}

// Output writes a line to stdout, e.g. the JSON summary from `images`.
func (c *Console) Output(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(os.Stdout, line)
}

// OutputErr writes a line to stderr, unprefixed and unconditional.
func (c *Console) OutputErr(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(os.Stderr, line)
}

// DebugOutput writes a line to stdout, but only when the console level is
// DebugLevel or more verbose.
func (c *Console) DebugOutput(line string) {
	if c.Level > DebugLevel {
		return
	}
	c.Output(line)
}

func (c *Console) log(level Level, msg string, v ...interface{}) {
	if level < c.Level {
		return
	}

	prompt := "═══╡ "
	continuationPrompt := "   │ "
	formattedMsg := fmt.Sprintf(msg, v...)

	if c.Color {
		color := aurora.Faint
		switch level {
		case WarnLevel:
			color = aurora.Yellow
		case ErrorLevel, FatalLevel:
			color = aurora.Red
		}
		prompt = color(prompt).String()
		continuationPrompt = color(continuationPrompt).String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, line := range strings.Split(formattedMsg, "\n") {
		if c.Color && level == DebugLevel {
			line = aurora.Faint(line).String()
		}
		if i == 0 {
			line = prompt + line
		} else {
			line = continuationPrompt + line
		}
		fmt.Fprintln(os.Stderr, line)
	}
}
