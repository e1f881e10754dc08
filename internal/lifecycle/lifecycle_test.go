package lifecycle

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

type fakeService struct {
	name string
	rec  *recorder
}

func (f *fakeService) Start(ctx context.Context) { f.rec.add("start " + f.name) }
func (f *fakeService) Stop()                    { f.rec.add("stop " + f.name) }

func TestStartStopOrder(t *testing.T) {
	rec := &recorder{}
	g := New(nil)
	ctx := context.Background()
	g.Add(ctx, "a", &fakeService{name: "a", rec: rec})
	g.Add(ctx, "b", &fakeService{name: "b", rec: rec})

	if g.Running() {
		t.Error("Running before Start")
	}
	g.Start(ctx)
	g.Start(ctx)
	if !g.Running() {
		t.Error("not Running after Start")
	}
	g.Stop()
	g.Stop()
	if g.Running() {
		t.Error("Running after Stop")
	}

	want := []string{"start a", "start b", "stop b", "stop a"}
	if !slices.Equal(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestAddWhileRunning(t *testing.T) {
	rec := &recorder{}
	g := New(nil)
	ctx := context.Background()
	g.Start(ctx)
	g.Add(ctx, "late", &fakeService{name: "late", rec: rec})
	g.Stop()

	want := []string{"start late", "stop late"}
	if !slices.Equal(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}

func TestRunStopsOnFirstError(t *testing.T) {
	rec := &recorder{}
	g := New(nil)
	g.Add(context.Background(), "svc", &fakeService{name: "svc", rec: rec})

	boom := errors.New("listen failed")
	err := g.Run(context.Background(),
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error { <-ctx.Done(); return nil },
	)
	if !errors.Is(err, boom) {
		t.Errorf("Run err = %v, want %v", err, boom)
	}
	if g.Running() {
		t.Error("group still running after Run")
	}
	want := []string{"start svc", "stop svc"}
	if !slices.Equal(rec.calls, want) {
		t.Errorf("calls = %v, want %v", rec.calls, want)
	}
}
