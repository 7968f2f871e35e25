package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rob-kingsbury/ui-explorer/internal/model"
)

// recordStep is a test step that records its execution order and can be
// configured to fail.
type recordStep struct {
	name string
	err  error
	log  *[]string
}

func (s *recordStep) Name() string { return s.name }

func (s *recordStep) Do(_ context.Context, _ *model.RunResult) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

func TestPipeline_Execute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		var log []string
		p := New()
		p.AddSteps(
			&recordStep{name: "first", log: &log},
			&recordStep{name: "second", log: &log},
			&recordStep{name: "third", log: &log},
		)

		result := model.NewRunResult("http://app.test")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		want := []string{"first", "second", "third"}
		if len(log) != len(want) {
			t.Fatalf("executed %v, want %v", log, want)
		}
		for i := range want {
			if log[i] != want[i] {
				t.Errorf("step %d = %q, want %q", i, log[i], want[i])
			}
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		var log []string
		boom := errors.New("boom")
		p := New()
		p.AddSteps(
			&recordStep{name: "first", log: &log},
			&recordStep{name: "failing", err: boom, log: &log},
			&recordStep{name: "never", log: &log},
		)

		result := model.NewRunResult("http://app.test")
		if err := p.Execute(context.Background(), result); !errors.Is(err, boom) {
			t.Fatalf("Execute error = %v, want %v", err, boom)
		}
		if len(log) != 2 {
			t.Errorf("executed %v, want first two steps only", log)
		}
		if result.Error != "boom" {
			t.Errorf("result error = %q, want %q", result.Error, "boom")
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		var log []string
		p := New(WithContinueOnError(true))
		p.AddSteps(
			&recordStep{name: "failing", err: errors.New("boom"), log: &log},
			&recordStep{name: "still-runs", log: &log},
		)

		result := model.NewRunResult("http://app.test")
		if err := p.Execute(context.Background(), result); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if len(log) != 2 {
			t.Errorf("executed %v, want both steps", log)
		}
		if result.Error == "" {
			t.Error("failed step's error not recorded in result")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var log []string
		p := New()
		p.AddStep(&recordStep{name: "never", log: &log})

		result := model.NewRunResult("http://app.test")
		if err := p.Execute(ctx, result); !errors.Is(err, context.Canceled) {
			t.Fatalf("Execute error = %v, want context.Canceled", err)
		}
		if len(log) != 0 {
			t.Errorf("steps ran after cancellation: %v", log)
		}
		if result.Error == "" {
			t.Error("cancellation not recorded in result")
		}
	})
}

func TestPipeline_StepNames(t *testing.T) {
	t.Parallel()

	var log []string
	p := New()
	p.AddSteps(
		&recordStep{name: "alpha", log: &log},
		&recordStep{name: "beta", log: &log},
	)

	if p.StepCount() != 2 {
		t.Errorf("StepCount = %d, want 2", p.StepCount())
	}
	names := p.StepNames()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("StepNames = %v, want [alpha beta]", names)
	}
}
