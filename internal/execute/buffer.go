// buffer.go holds the captured output of one generator process.
package execute

import (
	"strings"
	"sync"
)

// OutputBuffer is an append-only text buffer written by the drain task and
// read by the renderer. Every access goes through mu.
type OutputBuffer struct {
	mu sync.Mutex
	b  strings.Builder
}

// Append adds text to the buffer atomically.
func (o *OutputBuffer) Append(text string) {
	if text == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.b.WriteString(text)
}

// Write implements io.Writer so the buffer can sit behind io.Copy.
func (o *OutputBuffer) Write(p []byte) (int, error) {
	o.Append(string(p))
	return len(p), nil
}

// Snapshot returns the full accumulated content.
func (o *OutputBuffer) Snapshot() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.String()
}

// Len returns the number of bytes appended so far.
func (o *OutputBuffer) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.b.Len()
}
