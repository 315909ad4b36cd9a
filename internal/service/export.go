package service

import (
	"fmt"
	"time"

	"maildash/backend/internal/domain"
)

// 导出文件里的时间统一按东八区展示
var exportLocation = loadExportLocation()

func loadExportLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return loc
}

// formatExportTime 导出用的中文日期格式
func formatExportTime(t time.Time) string {
	return t.In(exportLocation).Format("2006年1月2日15:04:05")
}

// ConfigCSVRows 将邮箱配置转为 CSV 行（含表头）。
func ConfigCSVRows(configs []domain.EmailConfig, shareURL func(domain.EmailConfig) string) [][]string {
	rows := make([][]string, 0, len(configs)+1)
	rows = append(rows, []string{"目标邮箱", "密码", "来源", "分享方式", "分享链接", "已读取", "次数上限", "过期时间", "创建时间"})

	for _, cfg := range configs {
		link := ""
		if shareURL != nil {
			link = shareURL(cfg)
		}
		rows = append(rows, []string{
			cfg.TargetEmail,
			cfg.Password,
			string(cfg.Source),
			string(cfg.ShareType),
			link,
			fmt.Sprintf("%d", cfg.ReceivedCount),
			fmt.Sprintf("%d", cfg.MaxCount),
			formatExportTime(cfg.ExpiresAt),
			formatExportTime(cfg.CreatedAt),
		})
	}
	return rows
}

// TaskCSVRows 将批量任务的逐条结果转为 CSV 行（含表头）。
func TaskCSVRows(task *domain.BatchTask, shareURL func(domain.GeneratedAccount) string) [][]string {
	rows := make([][]string, 0, len(task.GeneratedAccounts)+1)
	rows = append(rows, []string{"邮箱", "密码", "状态", "分享链接"})

	for _, account := range task.GeneratedAccounts {
		link := ""
		if shareURL != nil && account.EmailConfigID != "" {
			link = shareURL(account)
		}
		rows = append(rows, []string{
			account.Email,
			account.Password,
			string(account.Status),
			link,
		})
	}
	return rows
}
