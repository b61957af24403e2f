// Package export 业务记录的xlsx导出,以及从xlsx读取批量目标
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
	"github.com/RecoveryAshes/EmailFinder/internal/store"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// sheetName 导出文件的工作表名
const sheetName = "businesses"

var exportHeader = []string{"ID", "Name", "Website", "Domain", "Email", "Source", "Updated At"}

// XLSXExporter 把业务记录写成xlsx
type XLSXExporter struct {
	// OnlyWithEmail 只导出已有邮箱的记录
	OnlyWithEmail bool
}

// Export 写出xlsx文件,返回写入的数据行数
func (e *XLSXExporter) Export(rows []store.Business, path string) (int, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("创建导出目录失败: %w", err)
		}
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return 0, eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().SetString(h)
	}

	written := 0
	for _, b := range rows {
		if e.OnlyWithEmail && b.Email == "" {
			continue
		}
		row := sheet.AddRow()
		row.AddCell().SetInt64(b.ID)
		for _, v := range []string{b.Name, b.Website, b.Domain, b.Email, b.EmailSource, b.EmailUpdatedAt} {
			row.AddCell().SetString(v)
		}
		written++
	}

	if err := f.Save(path); err != nil {
		return 0, eris.Wrap(err, "xlsx: save")
	}
	return written, nil
}

// ReadTargets 从xlsx第一个工作表读取目标
// 表头需包含website(或url/domain)列,可选id列
func ReadTargets(path string) ([]models.BusinessTarget, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s 中没有工作表", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	siteCol, idCol := -1, -1
	for i, cell := range sheet.Rows[0].Cells {
		switch strings.ToLower(strings.TrimSpace(cell.String())) {
		case "website", "url", "domain", "site":
			if siteCol < 0 {
				siteCol = i
			}
		case "id", "business_id":
			idCol = i
		}
	}
	if siteCol < 0 {
		return nil, eris.Errorf("xlsx: %s 缺少website列", path)
	}

	seen := make(map[string]bool)
	var targets []models.BusinessTarget
	for _, row := range sheet.Rows[1:] {
		if siteCol >= len(row.Cells) {
			continue
		}
		website := strings.TrimSpace(row.Cells[siteCol].String())
		if website == "" {
			continue
		}

		var id *int64
		if idCol >= 0 && idCol < len(row.Cells) {
			if n, err := strconv.ParseInt(strings.TrimSpace(row.Cells[idCol].String()), 10, 64); err == nil {
				id = &n
			}
		}

		target, err := models.NewBusinessTarget(id, website)
		if err != nil {
			continue
		}
		if seen[target.URL] {
			continue
		}
		seen[target.URL] = true
		targets = append(targets, target)
	}
	return targets, nil
}
