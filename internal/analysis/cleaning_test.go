package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func parseFrame(t *testing.T, csvText string) *Frame {
	t.Helper()
	f, err := ParseCSV(strings.NewReader(csvText))
	require.NoError(t, err)
	return f
}

func TestParseCSVRejectsEmptyDataset(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))
	require.Error(t, err)

	_, err = ParseCSV(strings.NewReader("a,b,c\n"))
	require.Error(t, err)
}

func TestParseCSVAlignsShortRows(t *testing.T) {
	f := parseFrame(t, "a,b,c\n1,2\n")
	require.Equal(t, []string{"a", "b", "c"}, f.Columns)
	require.Equal(t, []string{"1", "2", ""}, f.Rows[0])
}

func TestCleanDropNA(t *testing.T) {
	f := parseFrame(t, "a,b\n1,x\n2,\n3,y\n")
	cleaned := Clean(f, CleaningOptions{DropNA: true})
	require.Len(t, cleaned.Rows, 2)
	require.Equal(t, "1", cleaned.Rows[0][0])
	require.Equal(t, "3", cleaned.Rows[1][0])
}

func TestCleanFillNAMean(t *testing.T) {
	f := parseFrame(t, "val,name\n10,x\n,y\n20,z\n")
	cleaned := Clean(f, CleaningOptions{FillNA: "mean"})
	require.Equal(t, "15", cleaned.Rows[1][0])
	// 非数值列不受 mean 填充影响
	require.Equal(t, "y", cleaned.Rows[1][1])
}

func TestCleanFillNAMedian(t *testing.T) {
	f := parseFrame(t, "val\n1\n\n100\n3\n")
	cleaned := Clean(f, CleaningOptions{FillNA: "median"})
	require.Equal(t, "3", cleaned.Rows[1][0])
}

func TestCleanFillNAMode(t *testing.T) {
	f := parseFrame(t, "status\nOnline\nOnline\n\nOffline\n")
	cleaned := Clean(f, CleaningOptions{FillNA: "mode"})
	require.Equal(t, "Online", cleaned.Rows[2][0])
}

func TestCleanFillNAModeSkipsNumericColumns(t *testing.T) {
	f := parseFrame(t, "val\n1\n1\n\n")
	cleaned := Clean(f, CleaningOptions{FillNA: "mode"})
	require.Equal(t, "", cleaned.Rows[2][0])
}

func TestCleanRemoveDuplicates(t *testing.T) {
	f := parseFrame(t, "a,b\n1,x\n1,x\n1,y\n")
	cleaned := Clean(f, CleaningOptions{RemoveDuplicates: true})
	require.Len(t, cleaned.Rows, 2)
}

func TestCleanDoesNotMutateInput(t *testing.T) {
	f := parseFrame(t, "a\n1\n\n")
	_ = Clean(f, CleaningOptions{FillNA: "mean"})
	require.Equal(t, "", f.Rows[1][0])
}
