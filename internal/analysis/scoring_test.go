package analysis

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var testThresholds = Thresholds{CPU: 85, RAM: 80, Disk: 90}

const fleetCSV = `Computer ID,CPU Usage (%),RAM Usage (%),Disk Usage (%),Network Status,MissingPatchsKB,Severity,CVE identifier(s)
PC-A,90,85,95,Offline,5002768,Critical,CVE-2024-1234
PC-B,50,40,60,Online,Release Notes,Low,unknown
PC-C,30,30,30,Unstable,unknown,Moderate,
`

func TestScoreDetectsProblems(t *testing.T) {
	f := parseFrame(t, fleetCSV)
	result := Score(f, testThresholds)
	require.Len(t, result.Machines, 3)

	a := result.Machines[0]
	require.True(t, a.HighCPU)
	require.True(t, a.HighRAM)
	require.True(t, a.HighDisk)
	require.True(t, a.NetworkOffline)
	require.True(t, a.MissingPatch)
	require.True(t, a.CriticalVuln)
	require.True(t, a.HasCVE)
	// 2 + 1.5 + 2 + 3 + 2 + 3 + 1
	require.InDelta(t, 14.5, a.Score, 1e-9)
	require.Equal(t, "Critical", a.SeverityLevel)
	require.Equal(t, 7, a.TotalProblems)
	require.Contains(t, a.Problems, "High CPU usage")
	require.Contains(t, a.Problems, "Network disconnected")

	b := result.Machines[1]
	require.False(t, b.HighCPU)
	require.False(t, b.MissingPatch) // "Release Notes" 不算缺补丁
	require.False(t, b.HasCVE)       // "unknown" 不算 CVE
	require.True(t, b.LowVuln)
	require.InDelta(t, 0.5, b.Score, 1e-9)
	require.Equal(t, "Low", b.SeverityLevel)
	require.Equal(t, "No issues detected", b.Problems)
	require.Equal(t, 0, b.TotalProblems)

	c := result.Machines[2]
	require.True(t, c.NetworkUnstable)
	require.False(t, c.MissingPatch) // "unknown" 不算缺补丁
	require.True(t, c.ModerateVuln)
	require.False(t, c.HasCVE)
	// 2 + 1
	require.InDelta(t, 3, c.Score, 1e-9)
	require.Equal(t, "Low", c.SeverityLevel)
}

func TestSeverityLevelBoundaries(t *testing.T) {
	require.Equal(t, "Low", severityLevel(0))
	require.Equal(t, "Low", severityLevel(3))
	require.Equal(t, "Medium", severityLevel(3.5))
	require.Equal(t, "Medium", severityLevel(5))
	require.Equal(t, "High", severityLevel(5.5))
	require.Equal(t, "High", severityLevel(7))
	require.Equal(t, "Critical", severityLevel(7.5))
}

func TestScoreFuzzyColumnDiscovery(t *testing.T) {
	f := parseFrame(t, "Machine Processor Load,Total Memory Used,Storage Level\n95,85,95\n")
	result := Score(f, testThresholds)

	require.Equal(t, "Machine Processor Load", result.Cols.CPU)
	require.Equal(t, "Total Memory Used", result.Cols.RAM)
	require.Equal(t, "Storage Level", result.Cols.Disk)

	m := result.Machines[0]
	require.True(t, m.HighCPU)
	require.True(t, m.HighRAM)
	require.True(t, m.HighDisk)
}

func TestScoreSynthesizesMissingColumns(t *testing.T) {
	f := parseFrame(t, "Name\nalpha\nbeta\n")
	result := Score(f, testThresholds)

	// 缺失的指标列补默认名随机数据
	require.GreaterOrEqual(t, f.ColumnIndex("CPU Usage (%)"), 0)
	require.GreaterOrEqual(t, f.ColumnIndex("Network Status"), 0)

	for _, m := range result.Machines {
		require.GreaterOrEqual(t, m.CPU, 20.0)
		require.Less(t, m.CPU, 95.0)
		// CVE 列缺失时不产生 CVE 标记
		require.False(t, m.HasCVE)
	}
}

func TestScoreComputerIDFallback(t *testing.T) {
	f := parseFrame(t, "ID,CPU Usage (%)\nsrv-1,50\n")
	result := Score(f, testThresholds)
	require.Equal(t, "srv-1", result.Machines[0].ComputerID)

	f2 := parseFrame(t, "Name,CPU Usage (%)\nalpha,50\nbeta,60\n")
	result2 := Score(f2, testThresholds)
	require.Equal(t, "PC_001", result2.Machines[0].ComputerID)
	require.Equal(t, "PC_002", result2.Machines[1].ComputerID)
}

func TestScoreCoercesInvalidNumbers(t *testing.T) {
	f := parseFrame(t, "Computer ID,CPU Usage (%)\nA,10\nB,notanumber\nC,30\n")
	result := Score(f, testThresholds)
	// 解析失败的值用列中位数回填
	require.InDelta(t, 20, result.Machines[1].CPU, 1e-9)
}

func TestTopCriticalSortsByScore(t *testing.T) {
	f := parseFrame(t, fleetCSV)
	result := Score(f, testThresholds)

	top := result.TopCritical(2)
	require.Len(t, top, 2)
	require.Equal(t, "PC-A", top[0]["Computer ID"])
	require.Equal(t, "PC-C", top[1]["Computer ID"])

	// 展示列包含原始指标列和计算列
	require.Contains(t, top[0], "Critical_Score")
	require.Contains(t, top[0], "Severity_Level")
	require.Contains(t, top[0], "CPU Usage (%)")
}

func TestPreviewContainsComputedColumns(t *testing.T) {
	f := parseFrame(t, fleetCSV)
	result := Score(f, testThresholds)

	preview := result.Preview(20)
	require.Len(t, preview, 3)
	require.Equal(t, true, preview[0]["High_CPU"])
	require.Equal(t, "Critical", preview[0]["Severity_Level"])
	require.Equal(t, 90.0, preview[0]["CPU Usage (%)"])
}
