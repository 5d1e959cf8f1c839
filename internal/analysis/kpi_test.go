package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateKPIs(t *testing.T) {
	f := parseFrame(t, fleetCSV)
	result := Score(f, testThresholds)

	kpis := CalculateKPIs(result.Machines)

	require.Equal(t, 3, kpis.TotalMachines)
	require.InDelta(t, 33.3, kpis.CriticalPct, 1e-9)
	require.InDelta(t, 0.0, kpis.HighPct, 1e-9)
	require.InDelta(t, 0.0, kpis.MediumPct, 1e-9)
	require.InDelta(t, 66.7, kpis.LowPct, 1e-9)

	// (90+50+30)/3
	require.InDelta(t, 56.7, kpis.AvgCPU, 1e-9)
	require.InDelta(t, 90.0, kpis.MaxCPU, 1e-9)
	require.InDelta(t, 95.0, kpis.MaxDisk, 1e-9)

	// 7 + 0 + 2 个问题
	require.Equal(t, 9, kpis.MachinesWithProblems)
	require.InDelta(t, 3.0, kpis.AvgProblemsPerMachine, 1e-9)

	require.Equal(t, 1, kpis.MachinesMissingPatches)
	require.Equal(t, 1, kpis.CriticalVulnerabilities)
	require.Equal(t, 0, kpis.ImportantVulnerabilities)
	require.Equal(t, 1, kpis.MachinesWithCVE)
	require.Equal(t, 1, kpis.OfflineMachines)
	require.Equal(t, 1, kpis.UnstableConnections)

	// (14.5+0.5+3)/3 = 6
	require.InDelta(t, 6.0, kpis.AvgCriticalScore, 1e-9)
	require.InDelta(t, 14.5, kpis.MaxCriticalScore, 1e-9)
}

func TestCalculateKPIsEmpty(t *testing.T) {
	kpis := CalculateKPIs(nil)
	require.Equal(t, 0, kpis.TotalMachines)
	require.InDelta(t, 0.0, kpis.AvgCPU, 1e-9)
}
