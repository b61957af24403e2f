package utils

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/EmailFinder/internal/models"
)

// ReadTargetsFromFile 从文件中读取目标列表
// 每行一个目标: "网站" 或 "业务ID,网站";空行和#开头的注释行跳过
func ReadTargetsFromFile(filepath string) ([]models.BusinessTarget, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开目标文件失败: %w", err)
	}
	defer file.Close()

	targets := make([]models.BusinessTarget, 0)
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		target, err := ParseTargetLine(line)
		if err != nil {
			Warnf("跳过无效目标 (行 %d): %s - %v", lineNum, line, err)
			continue
		}

		key := target.URL
		if target.BusinessID != nil {
			key = strconv.FormatInt(*target.BusinessID, 10) + "|" + key
		}
		if seen[key] {
			Debugf("跳过重复目标 (行 %d): %s", lineNum, line)
			continue
		}
		seen[key] = true

		targets = append(targets, target)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取目标文件失败: %w", err)
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("目标文件中没有有效的目标")
	}

	Infof("从文件加载了 %d 个目标", len(targets))
	return targets, nil
}

// ParseTargetLine 解析单行目标
func ParseTargetLine(line string) (models.BusinessTarget, error) {
	var businessID *int64
	website := line

	if idPart, rest, ok := strings.Cut(line, ","); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
		if err != nil {
			return models.BusinessTarget{}, fmt.Errorf("业务ID无效: %q", idPart)
		}
		businessID = &id
		website = rest
	}

	return models.NewBusinessTarget(businessID, website)
}

// MaskEmail 日志中隐藏邮箱的大部分本地部分
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
