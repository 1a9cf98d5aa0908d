package watch

import (
	"context"
	"testing"
	"time"

	"github.com/retzger/centraldogma/internal/engineerr"
	"github.com/retzger/centraldogma/internal/pattern"
)

func TestNotifyCompletesMatchingWaiter(t *testing.T) {
	r := New()
	w := r.Register(pattern.MustCompile("/test/**"))

	r.Notify(2, []string{"/test/test3.json"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rev, err := w.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rev != 2 {
		t.Fatalf("got revision %d", rev)
	}
}

func TestIrrelevantChangeIsolation(t *testing.T) {
	r := New()
	w := r.Register(pattern.MustCompile("/test/test4.json"))

	r.Notify(2, []string{"/test/test3.json"})

	select {
	case res := <-w.done:
		t.Fatalf("waiter should not have completed, got %+v", res)
	default:
	}

	r.Notify(3, []string{"/test/test4.json"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rev, err := w.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rev != 3 {
		t.Fatalf("got revision %d", rev)
	}
}

func TestShutdownFailsAllWaiters(t *testing.T) {
	r := New()
	w1 := r.Register(pattern.MustCompile("/**"))
	w2 := r.Register(pattern.MustCompile("/a/**"))

	cause := engineerr.New(engineerr.ShuttingDown, "repository closed")
	r.Shutdown(cause)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, w := range []*Waiter{w1, w2} {
		_, err := w.Wait(ctx)
		if !engineerr.IsErrShuttingDown(err) {
			t.Fatalf("expected ShuttingDown, got %v", err)
		}
	}

	// Registrations after shutdown resolve immediately, never block.
	late := r.Register(pattern.MustCompile("/**"))
	_, err := late.Wait(ctx)
	if !engineerr.IsErrShuttingDown(err) {
		t.Fatalf("expected ShuttingDown for post-close registration, got %v", err)
	}
}

func TestCancelRemovesWaiterWithoutResolving(t *testing.T) {
	r := New()
	w := r.Register(pattern.MustCompile("/**"))
	r.Cancel(w)
	if stats := r.Stats(); stats.Pending != 0 {
		t.Fatalf("expected 0 pending after cancel, got %d", stats.Pending)
	}
	// A notify after cancellation must not panic on sending to the
	// removed waiter's channel.
	r.Notify(1, []string{"/x"})
}

func TestNotifyStormDoesNotBlockCallers(t *testing.T) {
	r := New()
	var waiters []*Waiter
	for i := 0; i < 200; i++ {
		waiters = append(waiters, r.Register(pattern.MustCompile("/**")))
	}
	done := make(chan struct{})
	go func() {
		r.Notify(5, []string{"/anything"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify should not block on waiter completion")
	}
}
