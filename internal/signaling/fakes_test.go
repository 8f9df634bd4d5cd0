package signaling

import "sync"

// fakeTransport is the in-memory Transport double used across this
// package's tests, modeled on the mockConn pattern in
// dragonfox-mediasync-server's hub tests: it records every frame sent and
// whether/why it was closed, guarded by a mutex since the dispatcher and
// the test goroutine both touch it.
type fakeTransport struct {
	mu          sync.Mutex
	frames      [][]byte
	closed      bool
	closeCode   int
	closeReason string
}

func (f *fakeTransport) Send(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
}

func (f *fakeTransport) Close(code int, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCode = code
	f.closeReason = reason
}

func (f *fakeTransport) framesSnapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func (f *fakeTransport) isClosed() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode
}
