// Package pipeline 实现知识库 CSV 的异步导入流水线。
package pipeline

import (
	"regexp"
	"strings"
)

var (
	issueTagRe   = regexp.MustCompile(`\(issue \d+\)`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeIssue 规范化问题文本：小写、去掉 "(issue N)" 标记、合并空白。
// 入库和查询使用同一规则，保证向量检索的两侧分布一致。
func NormalizeIssue(text string) string {
	s := strings.ToLower(text)
	s = issueTagRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
