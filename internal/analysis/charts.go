package analysis

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// 各严重度的固定配色，未知等级用灰色。
var severityColors = map[string]drawing.Color{
	"Low":      drawing.ColorFromHex("2ecc71"),
	"Medium":   drawing.ColorFromHex("f39c12"),
	"High":     drawing.ColorFromHex("e67e22"),
	"Critical": drawing.ColorFromHex("e74c3c"),
}

var greyColor = drawing.ColorFromHex("808080")

type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

// GenerateCharts 为评分结果生成仪表盘图表，返回 chart 名到 base64 PNG 的映射。
// 单个图表渲染失败时记录在 "error" 键下，不影响其余图表。
func GenerateCharts(result *ScoreResult) map[string]string {
	charts := make(map[string]string)

	if img, err := severityPie(result.Machines); err == nil {
		charts["severity_distribution"] = img
	} else {
		charts["error"] = fmt.Sprintf("Chart generation error: %v", err)
	}

	if img, err := scoreHistogram(result.Machines); err == nil {
		charts["critical_score_distribution"] = img
	} else {
		charts["error"] = fmt.Sprintf("Chart generation error: %v", err)
	}

	if img, err := problemTypesBar(result.Machines); err == nil {
		if img != "" {
			charts["problem_types_analysis"] = img
		}
	} else {
		charts["error"] = fmt.Sprintf("Chart generation error: %v", err)
	}

	if img, err := resourceComparisonBar(result.Machines); err == nil {
		charts["resource_comparison"] = img
	} else {
		charts["error"] = fmt.Sprintf("Chart generation error: %v", err)
	}

	if img, err := vulnerabilityBar(result.Machines); err == nil {
		if img != "" {
			charts["security_vulnerability_analysis"] = img
		}
	} else {
		charts["error"] = fmt.Sprintf("Chart generation error: %v", err)
	}

	return charts
}

// severityPie 绘制严重度分布饼图。
func severityPie(machines []Machine) (string, error) {
	counts := make(map[string]int)
	for i := range machines {
		counts[machines[i].SeverityLevel]++
	}

	var values []chart.Value
	// 固定顺序绘制，保证同一数据集出图一致
	for _, level := range []string{"Critical", "High", "Medium", "Low"} {
		if counts[level] == 0 {
			continue
		}
		color, ok := severityColors[level]
		if !ok {
			color = greyColor
		}
		values = append(values, chart.Value{
			Value: float64(counts[level]),
			Label: fmt.Sprintf("%s (%.1f%%)", level, float64(counts[level])/float64(len(machines))*100),
			Style: chart.Style{FillColor: color},
		})
	}

	pie := chart.PieChart{
		Title:  "Machine Severity Distribution",
		Width:  512,
		Height: 512,
		Values: values,
	}
	return renderBase64(&pie)
}

// scoreHistogram 把分值分成 20 个桶绘制柱状图。
func scoreHistogram(machines []Machine) (string, error) {
	minScore, maxScore := math.Inf(1), math.Inf(-1)
	for i := range machines {
		s := machines[i].Score
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	const binCount = 20
	width := (maxScore - minScore) / binCount
	if width == 0 {
		width = 1
	}

	bins := make([]int, binCount)
	for i := range machines {
		idx := int((machines[i].Score - minScore) / width)
		if idx >= binCount {
			idx = binCount - 1
		}
		bins[idx]++
	}

	histColor := drawing.ColorFromHex("9b59b6")
	bars := make([]chart.Value, 0, binCount)
	for i, count := range bins {
		bars = append(bars, chart.Value{
			Value: float64(count),
			Label: fmt.Sprintf("%.1f", minScore+float64(i)*width),
			Style: chart.Style{FillColor: histColor, StrokeColor: histColor},
		})
	}

	bar := chart.BarChart{
		Title:    "Critical Score Distribution",
		Width:    1024,
		Height:   512,
		BarWidth: 36,
		XAxis:    chart.Style{FontSize: 8},
		Bars:     bars,
	}
	return renderBase64(&bar)
}

// problemTypesBar 统计各问题类型影响的机器数，全为零时返回空串表示跳过。
func problemTypesBar(machines []Machine) (string, error) {
	var highCPU, highRAM, highDisk, network, patch, critVuln, impVuln, cve int
	for i := range machines {
		m := &machines[i]
		if m.HighCPU {
			highCPU++
		}
		if m.HighRAM {
			highRAM++
		}
		if m.HighDisk {
			highDisk++
		}
		if m.NetworkOffline || m.NetworkUnstable {
			network++
		}
		if m.MissingPatch {
			patch++
		}
		if m.CriticalVuln {
			critVuln++
		}
		if m.ImportantVuln {
			impVuln++
		}
		if m.HasCVE {
			cve++
		}
	}

	type entry struct {
		label string
		count int
		color drawing.Color
	}
	entries := []entry{
		{"High CPU", highCPU, drawing.ColorFromHex("3498db")},
		{"High RAM", highRAM, drawing.ColorFromHex("1abc9c")},
		{"High Disk", highDisk, drawing.ColorFromHex("9b59b6")},
		{"Network Issues", network, drawing.ColorFromHex("e67e22")},
		{"Missing Patches", patch, drawing.ColorFromHex("f1c40f")},
		{"Critical Vulns", critVuln, drawing.ColorFromHex("e74c3c")},
		{"Important Vulns", impVuln, drawing.ColorFromHex("f39c12")},
		{"CVE Issues", cve, drawing.ColorFromHex("2ecc71")},
	}

	var bars []chart.Value
	for _, e := range entries {
		if e.count == 0 {
			continue
		}
		bars = append(bars, chart.Value{
			Value: float64(e.count),
			Label: e.label,
			Style: chart.Style{FillColor: e.color, StrokeColor: e.color},
		})
	}
	if len(bars) == 0 {
		return "", nil
	}

	bar := chart.BarChart{
		Title:    "Problem Types Distribution",
		Width:    1024,
		Height:   512,
		BarWidth: 80,
		XAxis:    chart.Style{FontSize: 9},
		Bars:     bars,
	}
	return renderBase64(&bar)
}

// resourceComparisonBar 对比 CPU/RAM/Disk 的平均与峰值使用率。
func resourceComparisonBar(machines []Machine) (string, error) {
	var sumCPU, sumRAM, sumDisk, maxCPU, maxRAM, maxDisk float64
	for i := range machines {
		m := &machines[i]
		sumCPU += m.CPU
		sumRAM += m.RAM
		sumDisk += m.Disk
		if m.CPU > maxCPU {
			maxCPU = m.CPU
		}
		if m.RAM > maxRAM {
			maxRAM = m.RAM
		}
		if m.Disk > maxDisk {
			maxDisk = m.Disk
		}
	}
	n := float64(len(machines))

	cpuColor := drawing.ColorFromHex("3498db")
	ramColor := drawing.ColorFromHex("2ecc71")
	diskColor := drawing.ColorFromHex("e74c3c")

	bar := chart.BarChart{
		Title:    "Resource Usage Comparison",
		Width:    1024,
		Height:   512,
		BarWidth: 80,
		XAxis:    chart.Style{FontSize: 9},
		Bars: []chart.Value{
			{Value: round1(sumCPU / n), Label: "CPU avg", Style: chart.Style{FillColor: cpuColor, StrokeColor: cpuColor}},
			{Value: round1(maxCPU), Label: "CPU max", Style: chart.Style{FillColor: cpuColor, StrokeColor: cpuColor}},
			{Value: round1(sumRAM / n), Label: "RAM avg", Style: chart.Style{FillColor: ramColor, StrokeColor: ramColor}},
			{Value: round1(maxRAM), Label: "RAM max", Style: chart.Style{FillColor: ramColor, StrokeColor: ramColor}},
			{Value: round1(sumDisk / n), Label: "Disk avg", Style: chart.Style{FillColor: diskColor, StrokeColor: diskColor}},
			{Value: round1(maxDisk), Label: "Disk max", Style: chart.Style{FillColor: diskColor, StrokeColor: diskColor}},
		},
	}
	return renderBase64(&bar)
}

// vulnerabilityBar 按漏洞等级统计机器数，全为零时返回空串表示跳过。
func vulnerabilityBar(machines []Machine) (string, error) {
	var critical, important, moderate, low int
	for i := range machines {
		m := &machines[i]
		if m.CriticalVuln {
			critical++
		}
		if m.ImportantVuln {
			important++
		}
		if m.ModerateVuln {
			moderate++
		}
		if m.LowVuln {
			low++
		}
	}

	type entry struct {
		label string
		count int
		color drawing.Color
	}
	entries := []entry{
		{"Critical", critical, drawing.ColorFromHex("e74c3c")},
		{"Important", important, drawing.ColorFromHex("f39c12")},
		{"Moderate", moderate, drawing.ColorFromHex("f1c40f")},
		{"Low", low, drawing.ColorFromHex("2ecc71")},
	}

	var bars []chart.Value
	for _, e := range entries {
		if e.count == 0 {
			continue
		}
		bars = append(bars, chart.Value{
			Value: float64(e.count),
			Label: e.label,
			Style: chart.Style{FillColor: e.color, StrokeColor: e.color},
		})
	}
	if len(bars) == 0 {
		return "", nil
	}

	bar := chart.BarChart{
		Title:    "Security Vulnerability Distribution",
		Width:    800,
		Height:   512,
		BarWidth: 100,
		XAxis:    chart.Style{FontSize: 9},
		Bars:     bars,
	}
	return renderBase64(&bar)
}

// renderBase64 把图表渲染为 PNG 并编码成 base64 字符串。
func renderBase64(c renderable) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
