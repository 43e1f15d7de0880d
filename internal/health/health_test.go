package health

import (
	"context"
	"testing"
	"time"
)

// =============================================================================
// Tests for Checker
// =============================================================================

func TestRunChecksCollectsResults(t *testing.T) {
	c := NewChecker()
	c.Register(Component{
		Name:  "engine",
		Check: func(ctx context.Context) CheckResult { return Healthy("running") },
	})
	c.Register(Component{
		Name:  "archive",
		Check: func(ctx context.Context) CheckResult { return Degraded("queue backed up") },
	})

	results := c.RunChecks(context.Background())
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Component != "engine" || results[0].Status != StatusHealthy {
		t.Errorf("engine result = %+v", results[0])
	}
	if results[1].Status != StatusDegraded {
		t.Errorf("archive result = %+v", results[1])
	}
	if results[0].CheckedAt.IsZero() {
		t.Error("checked_at should be stamped")
	}
}

func TestOverallAggregation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		critical []bool
		want     Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, []bool{true, false}, StatusHealthy},
		{"noncritical unhealthy degrades", []Status{StatusHealthy, StatusUnhealthy}, []bool{true, false}, StatusDegraded},
		{"critical unhealthy fails", []Status{StatusUnhealthy, StatusHealthy}, []bool{true, false}, StatusUnhealthy},
		{"degraded component degrades", []Status{StatusDegraded, StatusHealthy}, []bool{true, true}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for i, st := range tt.statuses {
				st := st
				c.Register(Component{
					Name:     string(rune('a' + i)),
					Critical: tt.critical[i],
					Check: func(ctx context.Context) CheckResult {
						return CheckResult{Status: st}
					},
				})
			}
			c.RunChecks(context.Background())
			if got := c.Overall(); got != tt.want {
				t.Errorf("overall = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOverallWithNoResults(t *testing.T) {
	c := NewChecker()
	if got := c.Overall(); got != StatusUnknown {
		t.Errorf("overall = %s, want unknown", got)
	}
}

func TestCheckTimeout(t *testing.T) {
	c := NewChecker()
	c.Register(Component{
		Name:    "slow",
		Timeout: 20 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			return Healthy("too late")
		},
	})

	results := c.RunChecks(context.Background())
	if results[0].Status != StatusUnhealthy {
		t.Errorf("timed-out check should be unhealthy, got %s", results[0].Status)
	}
}

func TestRegisterReplacesByName(t *testing.T) {
	c := NewChecker()
	c.Register(Component{Name: "x", Check: func(ctx context.Context) CheckResult { return Unhealthy("old") }})
	c.Register(Component{Name: "x", Check: func(ctx context.Context) CheckResult { return Healthy("new") }})

	results := c.RunChecks(context.Background())
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Status != StatusHealthy {
		t.Errorf("replacement check should run, got %+v", results[0])
	}
}

func TestUncheckedComponentIsUnknown(t *testing.T) {
	c := NewChecker()
	c.Register(Component{Name: "never", Check: func(ctx context.Context) CheckResult { return Healthy("") }})

	results := c.Results()
	if results[0].Status != StatusUnknown {
		t.Errorf("unchecked component = %s, want unknown", results[0].Status)
	}
}

func TestReadiness(t *testing.T) {
	c := NewChecker()
	if c.Ready() {
		t.Error("checker should start not ready")
	}
	c.SetReady(true)
	if !c.Ready() {
		t.Error("checker should be ready after SetReady")
	}
}
