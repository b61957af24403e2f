package export

import (
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/EmailFinder/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestExport(t *testing.T) {
	rows := []store.Business{
		{ID: 1, Name: "Acme", Website: "https://acme.com", Domain: "acme.com", Email: "info@acme.com", EmailSource: "page_scan"},
		{ID: 2, Name: "Globex", Website: "https://globex.io", Domain: "globex.io"},
	}
	path := filepath.Join(t.TempDir(), "out", "businesses.xlsx")

	n, err := (&XLSXExporter{}).Export(rows, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := f.Sheet[sheetName]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Email", sheet.Rows[0].Cells[4].String())
	assert.Equal(t, "1", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "info@acme.com", sheet.Rows[1].Cells[4].String())

	t.Run("只导出有邮箱的记录", func(t *testing.T) {
		n, err := (&XLSXExporter{OnlyWithEmail: true}).Export(rows, filepath.Join(t.TempDir(), "e.xlsx"))
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func writeSheet(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, data := range rows {
		row := sheet.AddRow()
		for _, v := range data {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "targets.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadTargets(t *testing.T) {
	path := writeSheet(t, [][]string{
		{"ID", "Name", "Website"},
		{"10", "Acme", "acme.com"},
		{"", "Globex", "https://www.globex.io"},
		{"11", "Dup", "https://acme.com"},
		{"12", "Broken", "not a site"},
		{"13", "Empty", ""},
	})

	targets, err := ReadTargets(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.NotNil(t, targets[0].BusinessID)
	assert.Equal(t, int64(10), *targets[0].BusinessID)
	assert.Equal(t, "acme.com", targets[0].Domain)
	assert.Nil(t, targets[1].BusinessID)
	assert.Equal(t, "globex.io", targets[1].Domain)

	t.Run("缺少website列", func(t *testing.T) {
		_, err := ReadTargets(writeSheet(t, [][]string{{"Name"}, {"x"}}))
		assert.Error(t, err)
	})
}
