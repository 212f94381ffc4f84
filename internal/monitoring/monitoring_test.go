package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/votegate/internal/database/testutil"
	"github.com/charlesng35/votegate/internal/monitoring"
)

func TestHealthManagerCriticalFailureIsDown(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(time.Second)
	manager.Register("database", true, func(context.Context) error { return nil })
	manager.Register("redis", true, func(context.Context) error { return errors.New("connection refused") })

	report := manager.Evaluate(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "connection refused", report.Checks[1].Details)
}

func TestHealthManagerOptionalFailureDegrades(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(time.Second)
	manager.Register("database", true, func(context.Context) error { return nil })
	manager.Register("kafka", false, func(context.Context) error { return errors.New("no brokers") })
	manager.Register("ignored", false, nil)

	report := manager.Evaluate(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestHealthManagerTimeoutAndPanic(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(20 * time.Millisecond)
	manager.Register("slow", false, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	manager.Register("broken", true, func(context.Context) error { panic("boom") })

	report := manager.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Checks[0].Status)
	require.Equal(t, monitoring.StatusDown, report.Checks[1].Status)
	require.Contains(t, report.Checks[1].Details, "boom")
	require.Equal(t, monitoring.StatusDown, report.Status)
}

func TestDatabaseProbe(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	require.NoError(t, monitoring.DatabaseProbe(db)(context.Background()))
	require.Error(t, monitoring.DatabaseProbe(nil)(context.Background()))
	require.Error(t, monitoring.PingProbe(nil)(context.Background()))
}

func TestJobTrackerProbe(t *testing.T) {
	tracker := monitoring.NewJobTracker()
	probe := tracker.Probe(time.Hour)
	require.NoError(t, probe(context.Background()))

	tracker.Record("otp_sweep", nil, time.Millisecond)
	tracker.Record("audit_retention", errors.New("locked"), time.Millisecond)

	err := probe(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "audit_retention: 1 consecutive failures")

	tracker.Record("audit_retention", nil, time.Millisecond)
	require.NoError(t, probe(context.Background()))

	jobs := tracker.Jobs()
	require.Len(t, jobs, 2)
	require.Equal(t, "audit_retention", jobs[0].Job)
	require.EqualValues(t, 2, jobs[0].TotalRuns)
}
