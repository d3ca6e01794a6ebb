package output

import (
	"fmt"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a progress indicator on a terminal. Off a TTY the
// animation is suppressed and only the closing Success/Fail line is
// written.
type Spinner struct {
	r       *Renderer
	message string

	mu     sync.Mutex
	active bool
	done   chan struct{}
}

// NewSpinner creates a spinner with the given in-progress message.
func (r *Renderer) NewSpinner(message string) *Spinner {
	return &Spinner{r: r, message: message}
}

// Start begins the animation. Calling Start twice is a no-op.
func (s *Spinner) Start() {
	if !s.r.IsTTY() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return
	}
	s.active = true
	s.done = make(chan struct{})
	go s.spin(s.done)
}

func (s *Spinner) spin(done chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-done:
			return
		case <-ticker.C:
			frame := s.r.styles.Info.Render(spinnerFrames[i%len(spinnerFrames)])
			_, _ = fmt.Fprintf(s.r.out, "\r%s %s", frame, s.message)
		}
	}
}

// Stop halts the animation and clears the spinner line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
	_, _ = fmt.Fprint(s.r.out, "\r\033[K")
}

// Success stops the spinner and writes a success line.
func (s *Spinner) Success(message string) {
	s.Stop()
	s.r.Success(message)
}

// Fail stops the spinner and writes a failure line.
func (s *Spinner) Fail(message string) {
	s.Stop()
	s.r.Failure(message)
}
