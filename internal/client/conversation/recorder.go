package conversation

import "sync"

// MemoryRecorder keeps the audio of the current recording in memory. Write
// matches voiceagent.AudioSink, so agent audio can be captured alongside
// the call.
type MemoryRecorder struct {
	mu        sync.Mutex
	recording bool
	buf       []byte
	// Limit caps the buffer in bytes; zero means no cap.
	Limit int
}

// Start begins a new recording and drops the previous one.
func (r *MemoryRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = true
	r.buf = r.buf[:0]
	return nil
}

func (r *MemoryRecorder) Stop() {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
}

func (r *MemoryRecorder) Write(pcm []byte, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	if r.Limit > 0 && len(r.buf)+len(pcm) > r.Limit {
		pcm = pcm[:max(0, r.Limit-len(r.buf))]
	}
	r.buf = append(r.buf, pcm...)
}

func (r *MemoryRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Bytes returns a copy of the recorded audio.
func (r *MemoryRecorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.buf...)
}
