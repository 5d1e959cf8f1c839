package analysis

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateCharts(t *testing.T) {
	f := parseFrame(t, fleetCSV)
	result := Score(f, testThresholds)

	charts := GenerateCharts(result)
	require.NotContains(t, charts, "error")

	for _, name := range []string{
		"severity_distribution",
		"critical_score_distribution",
		"problem_types_analysis",
		"resource_comparison",
		"security_vulnerability_analysis",
	} {
		img, ok := charts[name]
		require.True(t, ok, "missing chart %s", name)

		raw, err := base64.StdEncoding.DecodeString(img)
		require.NoError(t, err)
		// PNG 魔数
		require.True(t, len(raw) > 8)
		require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw[:4])
	}
}

func TestGenerateChartsSkipsEmptyProblemChart(t *testing.T) {
	// 一台无任何问题的机器：问题类型图应被跳过
	f := parseFrame(t, "Computer ID,CPU Usage (%),RAM Usage (%),Disk Usage (%),Network Status,MissingPatchsKB,Severity,CVE identifier(s)\nPC-A,10,10,10,Online,Release Notes,none,\n")
	result := Score(f, testThresholds)

	charts := GenerateCharts(result)
	require.NotContains(t, charts, "problem_types_analysis")
	require.NotContains(t, charts, "security_vulnerability_analysis")
	require.Contains(t, charts, "severity_distribution")
}
