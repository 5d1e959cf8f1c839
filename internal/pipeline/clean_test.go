package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeIssue(t *testing.T) {
	require.Equal(t, "printer not working", NormalizeIssue("Printer NOT working (issue 42)"))
	require.Equal(t, "a b c", NormalizeIssue("  a\t b \n c  "))
	require.Equal(t, "", NormalizeIssue("(issue 1)"))
	require.Equal(t, "", NormalizeIssue("   "))
}

func TestParseEntries(t *testing.T) {
	csvText := `Customer_Issue,Tech_Response,Category
Printer not working (issue 1),Restart the spooler,Hardware
,No issue text here,
VPN drops,Reinstall the client,Network
Broken response,,
`
	p := &Processor{modelVersion: "test-model"}
	entries, err := p.parseEntries(strings.NewReader(csvText), "abc123")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "abc123", entries[0].FileMD5)
	require.Equal(t, 1, entries[0].RowID)
	require.Equal(t, "printer not working", entries[0].CleanIssue)
	require.Equal(t, "Restart the spooler", entries[0].TechResponse)
	require.Equal(t, "Hardware", entries[0].Category)
	require.Equal(t, "test-model", entries[0].ModelVersion)

	require.Equal(t, 3, entries[1].RowID)
	require.Equal(t, "vpn drops", entries[1].CleanIssue)
}

func TestParseEntriesMissingColumns(t *testing.T) {
	p := &Processor{}
	_, err := p.parseEntries(strings.NewReader("Question,Answer\nq,a\n"), "md5")
	require.Error(t, err)
}
