package analysis

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// CleaningOptions 描述用户选择的清洗步骤。
type CleaningOptions struct {
	// DropNA 为 true 时丢弃含缺失值的整行。
	DropNA bool `json:"drop_na"`
	// FillNA 取值 "mean"/"median"/"mode"，空串表示不填充。
	// mean/median 作用于数值列，mode 作用于非数值列。
	FillNA string `json:"fill_na"`
	// RemoveDuplicates 为 true 时去除完全重复的行。
	RemoveDuplicates bool `json:"remove_duplicates"`
	// TopN 控制返回的高危机器数量，0 表示使用默认值。
	TopN int `json:"top_n"`
}

// Clean 按选项对表格执行清洗，返回清洗后的新 Frame。
func Clean(f *Frame, opts CleaningOptions) *Frame {
	cleaned := &Frame{
		Columns: append([]string(nil), f.Columns...),
		Rows:    make([][]string, 0, len(f.Rows)),
	}
	for _, row := range f.Rows {
		cleaned.Rows = append(cleaned.Rows, append([]string(nil), row...))
	}

	if opts.DropNA {
		cleaned.Rows = dropNARows(cleaned.Rows)
	}

	switch opts.FillNA {
	case "mean":
		fillNumeric(cleaned, mean)
	case "median":
		fillNumeric(cleaned, median)
	case "mode":
		fillMode(cleaned)
	}

	if opts.RemoveDuplicates {
		cleaned.Rows = dedupRows(cleaned.Rows)
	}

	return cleaned
}

func dropNARows(rows [][]string) [][]string {
	kept := rows[:0]
	for _, row := range rows {
		hasNA := false
		for _, cell := range row {
			if cell == "" {
				hasNA = true
				break
			}
		}
		if !hasNA {
			kept = append(kept, row)
		}
	}
	return kept
}

// fillNumeric 用给定统计量填充所有数值列的缺失值。
func fillNumeric(f *Frame, stat func([]float64) float64) {
	for idx := range f.Columns {
		if !f.isNumericColumn(idx) {
			continue
		}
		vals := f.numericValues(idx)
		if len(vals) == 0 {
			continue
		}
		fill := strconv.FormatFloat(stat(vals), 'g', -1, 64)
		for _, row := range f.Rows {
			if row[idx] == "" {
				row[idx] = fill
			}
		}
	}
}

// fillMode 用出现次数最多的值填充非数值列的缺失值。
func fillMode(f *Frame) {
	for idx := range f.Columns {
		if f.isNumericColumn(idx) {
			continue
		}
		counts := make(map[string]int)
		for _, row := range f.Rows {
			if row[idx] != "" {
				counts[row[idx]]++
			}
		}
		if len(counts) == 0 {
			continue
		}
		// 取频次最高的值，频次相同时取字典序较小者，保证结果确定
		var modeVal string
		best := -1
		for v, n := range counts {
			if n > best || (n == best && v < modeVal) {
				best = n
				modeVal = v
			}
		}
		for _, row := range f.Rows {
			if row[idx] == "" {
				row[idx] = modeVal
			}
		}
	}
}

func dedupRows(rows [][]string) [][]string {
	seen := make(map[string]struct{}, len(rows))
	kept := rows[:0]
	for _, row := range rows {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, row)
	}
	return kept
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
