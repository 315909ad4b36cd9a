package domain

import (
	"regexp"
	"strings"
	"time"
)

// 各项参数的取值范围。DurationDays 与 MaxCount 超界时压到边界，
// 批量生成的 count/charLength 超界时直接报错。
const (
	MinDurationDays = 1
	MaxDurationDays = 365
	MinMaxCount     = 1
	MaxMaxCount     = 10000
	MinBatchCount   = 1
	MaxBatchCount   = 100
	MinCharLength   = 4
	MaxCharLength   = 20

	DefaultDurationDays = 1
	DefaultMaxCount     = 100
	DefaultCharLength   = 8
	DefaultBatchCount   = 10

	// PasswordLength 生成账号的随机密码长度（字母+数字混合）
	PasswordLength = 10
)

var splitEmailsRe = regexp.MustCompile(`[\r\n,;\s]+`)

// ClampDurationDays 将有效天数压入 [1,365]，非法值回落默认值。
func ClampDurationDays(v int) int {
	return clampInt(v, MinDurationDays, MaxDurationDays, DefaultDurationDays)
}

// ClampMaxCount 将读取次数上限压入 [1,10000]，非法值回落默认值。
func ClampMaxCount(v int) int {
	return clampInt(v, MinMaxCount, MaxMaxCount, DefaultMaxCount)
}

func clampInt(v, min, max, fallback int) int {
	if v == 0 {
		return fallback
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// NormalizeShareType 非 json 一律按 html 处理。
func NormalizeShareType(v string) ShareType {
	if ShareType(v) == ShareTypeJSON {
		return ShareTypeJSON
	}
	return ShareTypeHTML
}

// NormalizeEmail 去空白并转小写。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasDomainSuffix 判断邮箱是否属于要求的域名（大小写不敏感）。
func HasDomainSuffix(email, domain string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(email)), "@"+strings.ToLower(domain))
}

// ParseEmails 将自由文本拆成去重后的小写邮箱列表。
//
// 分隔符：换行、逗号、分号与任意空白。保持首次出现的顺序。
func ParseEmails(input string) []string {
	parts := splitEmailsRe.Split(input, -1)
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		email := NormalizeEmail(p)
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}

// ComputeExpiresAt 由当前时间与有效天数推出过期时刻。
func ComputeExpiresAt(now time.Time, durationDays int) time.Time {
	return now.AddDate(0, 0, durationDays)
}
