package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSinkCountsRun(t *testing.T) {
	set := New(prometheus.NewRegistry())
	sink := NewSink(set)

	sink.SyncStarted("run-1")
	if got := testutil.ToFloat64(set.ActiveRuns); got != 1 {
		t.Errorf("active runs = %v, want 1", got)
	}

	sink.TableDiffed("run-1", "users", 3)
	sink.TableDiffed("run-1", "orders", 2)
	if got := testutil.ToFloat64(set.RowsPending); got != 5 {
		t.Errorf("rows pending = %v, want 5", got)
	}

	sink.TableApplied("run-1", "orders", 2)
	sink.TableApplied("run-1", "users", 3)
	sink.SyncCompleted("run-1", nil)

	if got := testutil.ToFloat64(set.ActiveRuns); got != 0 {
		t.Errorf("active runs = %v, want 0", got)
	}
	if got := testutil.ToFloat64(set.SyncsTotal.WithLabelValues("committed")); got != 1 {
		t.Errorf("committed syncs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(set.RowsApplied.WithLabelValues("users")); got != 3 {
		t.Errorf("rows applied to users = %v, want 3", got)
	}
}

func TestSinkCountsFailure(t *testing.T) {
	set := New(prometheus.NewRegistry())
	sink := NewSink(set)

	sink.SyncStarted("run-1")
	sink.SyncFailed("run-1", errors.New("schemas diverged"))

	if got := testutil.ToFloat64(set.SyncsTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed syncs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(set.ActiveRuns); got != 0 {
		t.Errorf("active runs = %v, want 0", got)
	}
}

func TestRecordTriggerNilSet(t *testing.T) {
	var set *Set
	set.RecordTrigger("change")

	set = New(prometheus.NewRegistry())
	set.RecordTrigger("change")
	set.RecordTrigger("change")
	set.RecordTrigger("schedule")

	if got := testutil.ToFloat64(set.WatchTriggers.WithLabelValues("change")); got != 2 {
		t.Errorf("change triggers = %v, want 2", got)
	}
}
