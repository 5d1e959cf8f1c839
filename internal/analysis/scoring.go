package analysis

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Thresholds 为硬件使用率的告警阈值（百分比）。
type Thresholds struct {
	CPU  float64
	RAM  float64
	Disk float64
}

// columnSet 记录本次分析实际使用的列名。
type columnSet struct {
	CPU      string
	RAM      string
	Disk     string
	Network  string
	Patch    string
	Severity string
	CVE      string
}

// Machine 是单台机器的检测与评分结果。
type Machine struct {
	ComputerID string
	CPU        float64
	RAM        float64
	Disk       float64
	Network    string
	Patch      string
	Severity   string
	CVE        string

	HighCPU         bool
	HighRAM         bool
	HighDisk        bool
	NetworkOffline  bool
	NetworkUnstable bool
	MissingPatch    bool
	CriticalVuln    bool
	ImportantVuln   bool
	ModerateVuln    bool
	LowVuln         bool
	HasCVE          bool

	Score         float64
	SeverityLevel string
	Problems      string
	TotalProblems int
}

// ScoreResult 持有评分后的表格、逐机器结果和实际使用的列名。
type ScoreResult struct {
	Frame    *Frame
	Machines []Machine
	Cols     columnSet
}

// 各指标列的识别关键词（不区分大小写的子串匹配）。
var (
	cpuKeywords      = []string{"cpu", "processor"}
	ramKeywords      = []string{"ram", "memory"}
	diskKeywords     = []string{"disk", "storage"}
	networkKeywords  = []string{"network"}
	patchKeywords    = []string{"missingpatchs", "patch"}
	severityKeywords = []string{"severity", "risk level"}
	cveKeywords      = []string{"cve"}
)

// Score 对清洗后的表格执行问题检测与严重度评分。
// 指标列按关键词模糊识别；缺失的指标列用随机数据补齐以便演示，
// CVE 列缺失时相关标记恒为 false。
func Score(f *Frame, th Thresholds) *ScoreResult {
	cols := columnSet{
		CPU:      pickColumn(f, cpuKeywords, "CPU Usage (%)"),
		RAM:      pickColumn(f, ramKeywords, "RAM Usage (%)"),
		Disk:     pickColumn(f, diskKeywords, "Disk Usage (%)"),
		Network:  pickColumn(f, networkKeywords, "Network Status"),
		Patch:    pickColumn(f, patchKeywords, "MissingPatchsKB"),
		Severity: pickColumn(f, severityKeywords, "Severity"),
		CVE:      pickColumn(f, cveKeywords, "CVE identifier(s)"),
	}

	n := len(f.Rows)

	// 缺失的指标列补随机数据
	ensureNumericColumn(f, cols.CPU, 20, 95)
	ensureNumericColumn(f, cols.RAM, 30, 98)
	ensureNumericColumn(f, cols.Disk, 40, 99)
	ensureChoiceColumn(f, cols.Network, []string{"Online", "Offline", "Unstable"})
	ensureChoiceColumn(f, cols.Patch, []string{"Release Notes", "5002768", "5002754"})
	ensureChoiceColumn(f, cols.Severity, []string{"Critical", "Important", "Moderate", "Low"})

	ensureComputerIDColumn(f)

	// 数值列强制转换：解析失败或 ±Inf 记为缺失，用列中位数回填
	cpuVals := coerceNumeric(f, f.ColumnIndex(cols.CPU))
	ramVals := coerceNumeric(f, f.ColumnIndex(cols.RAM))
	diskVals := coerceNumeric(f, f.ColumnIndex(cols.Disk))

	idIdx := f.ColumnIndex("Computer ID")
	netIdx := f.ColumnIndex(cols.Network)
	patchIdx := f.ColumnIndex(cols.Patch)
	sevIdx := f.ColumnIndex(cols.Severity)
	cveIdx := f.ColumnIndex(cols.CVE)

	machines := make([]Machine, n)
	for i, row := range f.Rows {
		m := Machine{
			ComputerID: row[idIdx],
			CPU:        cpuVals[i],
			RAM:        ramVals[i],
			Disk:       diskVals[i],
			Network:    row[netIdx],
			Patch:      row[patchIdx],
			Severity:   row[sevIdx],
		}
		if cveIdx >= 0 {
			m.CVE = row[cveIdx]
		}

		netLower := strings.ToLower(m.Network)
		patchLower := strings.ToLower(m.Patch)
		sevLower := strings.ToLower(m.Severity)
		cveLower := strings.ToLower(m.CVE)

		// 硬件
		m.HighCPU = m.CPU > th.CPU
		m.HighRAM = m.RAM > th.RAM
		m.HighDisk = m.Disk > th.Disk

		// 网络
		m.NetworkOffline = netLower == "offline" || netLower == "disconnected"
		m.NetworkUnstable = netLower == "unstable" || netLower == "poor"

		// 安全补丁
		m.MissingPatch = m.Patch != "" && patchLower != "release notes" && patchLower != "unknown"

		// 漏洞等级
		m.CriticalVuln = strings.Contains(sevLower, "critical")
		m.ImportantVuln = strings.Contains(sevLower, "important")
		m.ModerateVuln = strings.Contains(sevLower, "moderate")
		m.LowVuln = strings.Contains(sevLower, "low")

		// CVE
		m.HasCVE = m.CVE != "" && cveLower != "unknown" && strings.Contains(m.CVE, "CVE-")

		m.Score = scoreOf(&m)
		m.SeverityLevel = severityLevel(m.Score)
		m.Problems, m.TotalProblems = summarizeProblems(&m)

		machines[i] = m
	}

	return &ScoreResult{Frame: f, Machines: machines, Cols: cols}
}

// scoreOf 按固定权重累加各问题的分值。
func scoreOf(m *Machine) float64 {
	score := 0.0
	if m.HighCPU {
		score += 2
	}
	if m.HighRAM {
		score += 1.5
	}
	if m.HighDisk {
		score += 2
	}
	if m.NetworkOffline {
		score += 3
	}
	if m.NetworkUnstable {
		score += 2
	}
	if m.MissingPatch {
		score += 2
	}
	if m.CriticalVuln {
		score += 3
	}
	if m.ImportantVuln {
		score += 2
	}
	if m.ModerateVuln {
		score += 1
	}
	if m.LowVuln {
		score += 0.5
	}
	if m.HasCVE {
		score += 1
	}
	return score
}

// severityLevel 把分值映射到四档严重度。
func severityLevel(score float64) string {
	switch {
	case score <= 3:
		return "Low"
	case score <= 5:
		return "Medium"
	case score <= 7:
		return "High"
	default:
		return "Critical"
	}
}

// summarizeProblems 生成可读的问题描述和问题计数。
func summarizeProblems(m *Machine) (string, int) {
	var issues []string
	if m.HighCPU {
		issues = append(issues, "High CPU usage")
	}
	if m.HighRAM {
		issues = append(issues, "High RAM usage")
	}
	if m.HighDisk {
		issues = append(issues, "Disk almost full")
	}
	if m.NetworkOffline {
		issues = append(issues, "Network disconnected")
	}
	if m.NetworkUnstable {
		issues = append(issues, "Network unstable")
	}
	if m.MissingPatch {
		issues = append(issues, "Missing security patch")
	}
	if m.CriticalVuln {
		issues = append(issues, "Critical vulnerability")
	}
	if m.ImportantVuln {
		issues = append(issues, "Important vulnerability")
	}
	if m.ModerateVuln {
		issues = append(issues, "Moderate vulnerability")
	}
	if m.HasCVE {
		issues = append(issues, "CVE identified")
	}

	// Low_Vulnerability 只参与评分，不计入问题描述和问题总数
	if len(issues) == 0 {
		return "No issues detected", 0
	}
	return strings.Join(issues, "; "), len(issues)
}

// pickColumn 返回首个匹配关键词的列名，无匹配时返回默认名。
func pickColumn(f *Frame, keywords []string, fallback string) string {
	if found := f.findColumns(keywords); len(found) > 0 {
		return found[0]
	}
	return fallback
}

// ensureNumericColumn 列不存在时补一列 [lo, hi) 范围的随机整数。
func ensureNumericColumn(f *Frame, name string, lo, hi int) {
	if f.ColumnIndex(name) >= 0 {
		return
	}
	values := make([]string, len(f.Rows))
	for i := range values {
		values[i] = strconv.Itoa(rand.Intn(hi-lo) + lo)
	}
	f.AddColumn(name, values)
}

// ensureChoiceColumn 列不存在时补一列从 choices 中随机抽取的值。
func ensureChoiceColumn(f *Frame, name string, choices []string) {
	if f.ColumnIndex(name) >= 0 {
		return
	}
	values := make([]string, len(f.Rows))
	for i := range values {
		values[i] = choices[rand.Intn(len(choices))]
	}
	f.AddColumn(name, values)
}

// ensureComputerIDColumn 保证存在 "Computer ID" 列：
// 依次回退到 "ID"、"Computer"，都不存在时生成 PC_001 形式的编号。
func ensureComputerIDColumn(f *Frame) {
	if f.ColumnIndex("Computer ID") >= 0 {
		return
	}
	values := make([]string, len(f.Rows))
	if idx := f.ColumnIndex("ID"); idx >= 0 {
		for i, row := range f.Rows {
			values[i] = row[idx]
		}
	} else if idx := f.ColumnIndex("Computer"); idx >= 0 {
		for i, row := range f.Rows {
			values[i] = row[idx]
		}
	} else {
		for i := range values {
			values[i] = fmt.Sprintf("PC_%03d", i+1)
		}
	}
	f.AddColumn("Computer ID", values)
}

// coerceNumeric 把一列转换为浮点数：解析失败或 ±Inf 用列中位数回填，
// 整列无有效值时回填 0。同时把回填结果写回表格。
func coerceNumeric(f *Frame, idx int) []float64 {
	n := len(f.Rows)
	vals := make([]float64, n)
	valid := make([]bool, n)
	var present []float64

	for i, row := range f.Rows {
		v, err := strconv.ParseFloat(row[idx], 64)
		if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		vals[i] = v
		valid[i] = true
		present = append(present, v)
	}

	fill := 0.0
	if len(present) > 0 {
		fill = median(present)
	}

	for i := range vals {
		if !valid[i] {
			vals[i] = fill
			f.Rows[i][idx] = strconv.FormatFloat(fill, 'g', -1, 64)
		}
	}
	return vals
}

// Preview 返回前 n 行的记录视图，含原始列和所有计算列。
func (r *ScoreResult) Preview(n int) []map[string]any {
	if n > len(r.Machines) {
		n = len(r.Machines)
	}
	records := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, r.record(i, nil))
	}
	return records
}

// TopCritical 返回按分值降序的前 topN 台机器，只保留展示列。
func (r *ScoreResult) TopCritical(topN int) []map[string]any {
	order := make([]int, len(r.Machines))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return r.Machines[order[a]].Score > r.Machines[order[b]].Score
	})

	display := []string{
		"Computer ID", "Critical_Score", "Severity_Level", "Total_Problems", "Problems",
		r.Cols.CPU, r.Cols.RAM, r.Cols.Disk, r.Cols.Network, r.Cols.Patch,
		r.Cols.Severity, r.Cols.CVE,
	}

	if topN > len(order) {
		topN = len(order)
	}
	records := make([]map[string]any, 0, topN)
	for _, idx := range order[:topN] {
		records = append(records, r.record(idx, display))
	}
	return records
}

// record 构造一行的记录视图。columns 非 nil 时只保留其中存在的列。
func (r *ScoreResult) record(i int, columns []string) map[string]any {
	m := &r.Machines[i]
	full := make(map[string]any, len(r.Frame.Columns)+16)

	for j, col := range r.Frame.Columns {
		full[col] = r.Frame.Rows[i][j]
	}
	// 数值列用转换后的浮点值覆盖
	full[r.Cols.CPU] = m.CPU
	full[r.Cols.RAM] = m.RAM
	full[r.Cols.Disk] = m.Disk

	full["Computer ID"] = m.ComputerID
	full["High_CPU"] = m.HighCPU
	full["High_RAM"] = m.HighRAM
	full["High_Disk"] = m.HighDisk
	full["Network_Offline"] = m.NetworkOffline
	full["Network_Unstable"] = m.NetworkUnstable
	full["Missing_Patch"] = m.MissingPatch
	full["Critical_Vulnerability"] = m.CriticalVuln
	full["Important_Vulnerability"] = m.ImportantVuln
	full["Moderate_Vulnerability"] = m.ModerateVuln
	full["Low_Vulnerability"] = m.LowVuln
	full["Has_CVE"] = m.HasCVE
	full["Critical_Score"] = m.Score
	full["Severity_Level"] = m.SeverityLevel
	full["Problems"] = m.Problems
	full["Total_Problems"] = m.TotalProblems

	if columns == nil {
		return full
	}
	rec := make(map[string]any, len(columns))
	for _, col := range columns {
		if v, ok := full[col]; ok {
			rec[col] = v
		}
	}
	return rec
}
