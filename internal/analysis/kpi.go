package analysis

// KPIs 汇总整个机器清单的关键指标。
type KPIs struct {
	TotalMachines int `json:"total_machines"`

	CriticalPct float64 `json:"critical_pct"`
	HighPct     float64 `json:"high_pct"`
	MediumPct   float64 `json:"medium_pct"`
	LowPct      float64 `json:"low_pct"`

	AvgCPU  float64 `json:"avg_cpu"`
	AvgRAM  float64 `json:"avg_ram"`
	AvgDisk float64 `json:"avg_disk"`
	MaxCPU  float64 `json:"max_cpu"`
	MaxRAM  float64 `json:"max_ram"`
	MaxDisk float64 `json:"max_disk"`

	// MachinesWithProblems 是全部机器的问题总数（逐机器累加）。
	MachinesWithProblems  int     `json:"machines_with_problems"`
	AvgProblemsPerMachine float64 `json:"avg_problems_per_machine"`

	MachinesMissingPatches   int `json:"machines_missing_patches"`
	CriticalVulnerabilities  int `json:"critical_vulnerabilities"`
	ImportantVulnerabilities int `json:"important_vulnerabilities"`
	MachinesWithCVE          int `json:"machines_with_cve"`

	OfflineMachines     int `json:"offline_machines"`
	UnstableConnections int `json:"unstable_connections"`

	AvgCriticalScore float64 `json:"avg_critical_score"`
	MaxCriticalScore float64 `json:"max_critical_score"`
}

// CalculateKPIs 从逐机器评分结果汇总 KPI，百分比与均值保留一位小数。
func CalculateKPIs(machines []Machine) KPIs {
	n := len(machines)
	kpis := KPIs{TotalMachines: n}
	if n == 0 {
		return kpis
	}

	var critical, high, medium, low int
	var sumCPU, sumRAM, sumDisk, sumScore float64
	var totalProblems int

	for i := range machines {
		m := &machines[i]

		switch m.SeverityLevel {
		case "Critical":
			critical++
		case "High":
			high++
		case "Medium":
			medium++
		case "Low":
			low++
		}

		sumCPU += m.CPU
		sumRAM += m.RAM
		sumDisk += m.Disk
		sumScore += m.Score
		totalProblems += m.TotalProblems

		if m.CPU > kpis.MaxCPU {
			kpis.MaxCPU = m.CPU
		}
		if m.RAM > kpis.MaxRAM {
			kpis.MaxRAM = m.RAM
		}
		if m.Disk > kpis.MaxDisk {
			kpis.MaxDisk = m.Disk
		}
		if m.Score > kpis.MaxCriticalScore {
			kpis.MaxCriticalScore = m.Score
		}

		if m.MissingPatch {
			kpis.MachinesMissingPatches++
		}
		if m.CriticalVuln {
			kpis.CriticalVulnerabilities++
		}
		if m.ImportantVuln {
			kpis.ImportantVulnerabilities++
		}
		if m.HasCVE {
			kpis.MachinesWithCVE++
		}
		if m.NetworkOffline {
			kpis.OfflineMachines++
		}
		if m.NetworkUnstable {
			kpis.UnstableConnections++
		}
	}

	fn := float64(n)
	kpis.CriticalPct = round1(float64(critical) / fn * 100)
	kpis.HighPct = round1(float64(high) / fn * 100)
	kpis.MediumPct = round1(float64(medium) / fn * 100)
	kpis.LowPct = round1(float64(low) / fn * 100)

	kpis.AvgCPU = round1(sumCPU / fn)
	kpis.AvgRAM = round1(sumRAM / fn)
	kpis.AvgDisk = round1(sumDisk / fn)
	kpis.MaxCPU = round1(kpis.MaxCPU)
	kpis.MaxRAM = round1(kpis.MaxRAM)
	kpis.MaxDisk = round1(kpis.MaxDisk)

	kpis.MachinesWithProblems = totalProblems
	kpis.AvgProblemsPerMachine = round1(float64(totalProblems) / fn)

	kpis.AvgCriticalScore = round1(sumScore / fn)
	kpis.MaxCriticalScore = round1(kpis.MaxCriticalScore)

	return kpis
}
