package notify

import "time"

// Level 通知级别
type Level string

const (
	LevelCritical Level = "critical"
	LevelWarning  Level = "warning"
	LevelInfo     Level = "info"
)

// Notice 平台无关的通知内容
type Notice struct {
	Level   Level
	Title   string
	Summary string
	// Fields 按顺序展示的键值对
	Fields    []Field
	Links     []Link
	Timestamp time.Time
	AtAll     bool
}

// Field 键值对
type Field struct {
	Key   string
	Value string
}

// Link 超链接
type Link struct {
	Text string
	URL  string
}

// AddField 追加字段
func (n *Notice) AddField(key, value string) *Notice {
	n.Fields = append(n.Fields, Field{Key: key, Value: value})
	return n
}
