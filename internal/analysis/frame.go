// Package analysis 实现机器清单 CSV 的清洗、问题检测、严重度评分、KPI 与图表生成。
package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Frame 是从 CSV 解析出的内存表格，首行为表头。
// 单元格统一以字符串存储，空字符串视为缺失值。
type Frame struct {
	Columns []string
	Rows    [][]string
}

// ParseCSV 从 reader 解析 CSV，要求存在表头且至少一行数据。
func ParseCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV 解析失败: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("数据集为空")
	}

	columns := make([]string, len(records[0]))
	for i, c := range records[0] {
		columns[i] = strings.TrimSpace(c)
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		// 对齐列数：短行补空，长行截断
		row := make([]string, len(columns))
		for i := range columns {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("数据集为空")
	}

	return &Frame{Columns: columns, Rows: rows}, nil
}

// ColumnIndex 返回列名对应的下标，不存在时返回 -1。
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddColumn 追加一列并为每行填入给定值。values 长度必须等于行数。
func (f *Frame) AddColumn(name string, values []string) {
	f.Columns = append(f.Columns, name)
	for i := range f.Rows {
		f.Rows[i] = append(f.Rows[i], values[i])
	}
}

// findColumns 按关键词子串匹配列名（不区分大小写），返回所有命中的列。
func (f *Frame) findColumns(keywords []string) []string {
	var found []string
	for _, col := range f.Columns {
		lower := strings.ToLower(col)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				found = append(found, col)
				break
			}
		}
	}
	return found
}

// isNumericColumn 判断一列是否为数值列：至少有一个非空单元格且全部可解析为浮点数。
func (f *Frame) isNumericColumn(idx int) bool {
	seen := false
	for _, row := range f.Rows {
		v := row[idx]
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

// numericValues 解析一列中所有非空且可解析的值。
func (f *Frame) numericValues(idx int) []float64 {
	var vals []float64
	for _, row := range f.Rows {
		if row[idx] == "" {
			continue
		}
		if v, err := strconv.ParseFloat(row[idx], 64); err == nil {
			vals = append(vals, v)
		}
	}
	return vals
}
