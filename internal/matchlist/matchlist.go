// Package matchlist 实现逗号分隔的通配模式列表，
// 既用作镜像名称白名单，也用作容器状态黑名单。
package matchlist

import "strings"

// Matchlist 保存按输入顺序排列、去除首尾空白后的非空模式。
//
// 支持的模式形式：
//   - *x*  包含 x
//   - *x   以 x 结尾
//   - x*   以 x 开头
//   - x    完全相等
type Matchlist struct {
	patterns []string
}

// New 解析逗号分隔的模式串；空串或纯空白返回空列表。
func New(input string) *Matchlist {
	m := &Matchlist{patterns: make([]string, 0)}
	for _, entry := range strings.Split(input, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		m.patterns = append(m.patterns, entry)
	}
	return m
}

// Match 判断 input 是否命中任意模式，默认忽略大小写。
// nil 列表和空输入都不匹配。
func (m *Matchlist) Match(input string) bool {
	return m.MatchCase(input, true)
}

// MatchCase 与 Match 相同，但可以指定是否忽略大小写。
func (m *Matchlist) MatchCase(input string, ignoreCase bool) bool {
	if m == nil || strings.TrimSpace(input) == "" {
		return false
	}

	subject := input
	if ignoreCase {
		subject = strings.ToLower(input)
	}

	for _, entry := range m.patterns {
		pattern := entry
		if ignoreCase {
			pattern = strings.ToLower(entry)
		}
		if matchPattern(subject, pattern) {
			return true
		}
	}
	return false
}

func matchPattern(input, pattern string) bool {
	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*")

	switch {
	case leading && trailing:
		// 单独的 "*" 视为 "**"，匹配一切
		if len(pattern) < 2 {
			return true
		}
		return strings.Contains(input, pattern[1:len(pattern)-1])
	case leading:
		return strings.HasSuffix(input, pattern[1:])
	case trailing:
		return strings.HasPrefix(input, pattern[:len(pattern)-1])
	default:
		return input == pattern
	}
}

// MatchAny 任意一个输入命中即返回 true；inputs 为空时返回 false。
func (m *Matchlist) MatchAny(inputs []string) bool {
	return m.MatchAnyCase(inputs, true)
}

// MatchAnyCase 与 MatchAny 相同，但可以指定是否忽略大小写。
func (m *Matchlist) MatchAnyCase(inputs []string, ignoreCase bool) bool {
	for _, input := range inputs {
		if m.MatchCase(input, ignoreCase) {
			return true
		}
	}
	return false
}

// ToList 返回模式列表的副本。
func (m *Matchlist) ToList() []string {
	if m == nil {
		return []string{}
	}
	out := make([]string, len(m.patterns))
	copy(out, m.patterns)
	return out
}

// Empty 列表不含任何模式时返回 true。
func (m *Matchlist) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// String 以逗号拼接模式，便于日志输出。
func (m *Matchlist) String() string {
	return strings.Join(m.ToList(), ",")
}
