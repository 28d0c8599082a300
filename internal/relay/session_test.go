package relay

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/transport/transporttest"
)

func openSession(t *testing.T, conn *transporttest.Conn, expiresAt time.Time, opts ...Option) *Session {
	t.Helper()
	tr := transporttest.NewTransport().Handle("wss://valid", func() *transporttest.Conn { return conn })
	s, err := Open(context.Background(), tr, "wss://valid", expiresAt, opts...)
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	return s
}

func collect(ctx context.Context, s *Session) ([]string, error) {
	var frames []string
	for frame, err := range s.Frames(ctx) {
		if err != nil {
			return frames, err
		}
		frames = append(frames, string(frame))
	}
	return frames, nil
}

func TestSession_AlreadyExpired(t *testing.T) {
	now := time.Now()
	conn := transporttest.NewConn("never")
	s := openSession(t, conn, now, WithClock(func() time.Time { return now }))

	frames, err := collect(context.Background(), s)
	if err != nil {
		t.Fatalf("Frames() unexpected error: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("Frames() = %v, want empty", frames)
	}
	if conn.Receives() != 0 {
		t.Errorf("Receive called %d times on expired session, want 0", conn.Receives())
	}
	if conn.Closes() != 1 {
		t.Errorf("Close called %d times, want 1", conn.Closes())
	}
	if got := s.Stats().Reason; got != EndExpired {
		t.Errorf("Stats().Reason = %q, want %q", got, EndExpired)
	}
}

func TestSession_ExpiresMidStream(t *testing.T) {
	base := time.Now()
	expiry := base.Add(time.Hour)

	// every clock read advances by 20 minutes: Open reads +0,
	// the checks at +20 and +40 pass, the check at +60 stops the stream
	var ticks atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)-1) * 20 * time.Minute)
	}

	conn := transporttest.NewConn("f1", "f2", "f3", "f4", "f5")
	s := openSession(t, conn, expiry, WithClock(clock))

	frames, err := collect(context.Background(), s)
	if err != nil {
		t.Fatalf("Frames() unexpected error: %v", err)
	}
	if !reflect.DeepEqual(frames, []string{"f1", "f2"}) {
		t.Errorf("Frames() = %v, want [f1 f2]", frames)
	}
	if conn.Closes() != 1 {
		t.Errorf("Close called %d times, want 1", conn.Closes())
	}
	if got := s.Stats().Reason; got != EndExpired {
		t.Errorf("Stats().Reason = %q, want %q", got, EndExpired)
	}
}

func TestSession_UpstreamError(t *testing.T) {
	conn := transporttest.NewConn("f1", "f2")
	conn.Err = io.ErrUnexpectedEOF
	s := openSession(t, conn, time.Now().Add(time.Minute))

	frames, err := collect(context.Background(), s)
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Frames() error = %v, want ErrUpstream wrapping io.ErrUnexpectedEOF", err)
	}
	if !reflect.DeepEqual(frames, []string{"f1", "f2"}) {
		t.Errorf("Frames() = %v, want [f1 f2]", frames)
	}
	if conn.Closes() != 1 {
		t.Errorf("Close called %d times, want 1", conn.Closes())
	}
	if got := s.Stats(); got.Reason != EndUpstream || got.Frames != 2 || got.Bytes != 4 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestSession_ConsumerBreaks(t *testing.T) {
	conn := transporttest.NewConn("f1", "f2", "f3")
	s := openSession(t, conn, time.Now().Add(time.Minute))

	var got []string
	for frame, err := range s.Frames(context.Background()) {
		if err != nil {
			t.Fatalf("Frames() unexpected error: %v", err)
		}
		got = append(got, string(frame))
		if len(got) == 2 {
			break
		}
	}

	if !reflect.DeepEqual(got, []string{"f1", "f2"}) {
		t.Errorf("frames = %v, want [f1 f2]", got)
	}
	if conn.Closes() != 1 {
		t.Errorf("Close called %d times, want 1", conn.Closes())
	}
	if conn.Receives() != 2 {
		t.Errorf("Receive called %d times, want 2", conn.Receives())
	}
	if got := s.Stats().Reason; got != EndConsumer {
		t.Errorf("Stats().Reason = %q, want %q", got, EndConsumer)
	}
}

func TestSession_ConsumerContextCancelled(t *testing.T) {
	conn := transporttest.NewConn("f1") // blocks after the first frame
	s := openSession(t, conn, time.Now().Add(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := collect(ctx, s)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Frames() error = %v, want silent end", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Frames() did not return after cancellation")
	}
	if conn.Closes() != 1 {
		t.Errorf("Close called %d times, want 1", conn.Closes())
	}
}

func TestSession_BlockedReceiveStopsAtExpiry(t *testing.T) {
	conn := transporttest.NewConn() // never delivers a frame
	s := openSession(t, conn, time.Now().Add(50*time.Millisecond))

	start := time.Now()
	frames, err := collect(context.Background(), s)
	if err != nil {
		t.Errorf("Frames() error = %v, want clean end", err)
	}
	if len(frames) != 0 {
		t.Errorf("Frames() = %v, want empty", frames)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("session outlived its expiry by %v", elapsed)
	}
	if conn.Closes() != 1 {
		t.Errorf("Close called %d times, want 1", conn.Closes())
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	t.Run("Without Consuming", func(t *testing.T) {
		conn := transporttest.NewConn("f1")
		s := openSession(t, conn, time.Now().Add(time.Minute))

		_ = s.Close()
		_ = s.Close()

		if conn.Closes() != 1 {
			t.Errorf("Close called %d times, want 1", conn.Closes())
		}
	})

	t.Run("After Consuming", func(t *testing.T) {
		conn := transporttest.NewConn("f1")
		conn.Err = io.EOF
		s := openSession(t, conn, time.Now().Add(time.Minute))

		_, _ = collect(context.Background(), s)
		_ = s.Close()

		if conn.Closes() != 1 {
			t.Errorf("Close called %d times, want 1", conn.Closes())
		}
	})
}

func TestSession_NotRestartable(t *testing.T) {
	conn := transporttest.NewConn("f1")
	conn.Err = io.EOF
	s := openSession(t, conn, time.Now().Add(time.Minute))

	_, _ = collect(context.Background(), s)
	_, err := collect(context.Background(), s)
	if !errors.Is(err, ErrSessionConsumed) {
		t.Errorf("second Frames() error = %v, want ErrSessionConsumed", err)
	}
	if conn.Closes() != 1 {
		t.Errorf("Close called %d times, want 1", conn.Closes())
	}
}

func TestOpen_ConnectFailure(t *testing.T) {
	tr := transporttest.NewTransport()
	_, err := Open(context.Background(), tr, "wss://invalid", time.Now().Add(time.Minute))
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, transporttest.ErrInvalidStream) {
		t.Errorf("Open() error = %v, want ErrUpstream wrapping ErrInvalidStream", err)
	}
}
