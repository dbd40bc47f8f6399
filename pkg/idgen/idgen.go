package idgen

import (
	"strconv"
	"sync/atomic"
)

// Generator ID 生成器
type Generator interface {
	NextID() (int64, error)
}

// Config 生成器配置
type Config struct {
	// MachineID 多实例部署时必须互不相同
	MachineID uint16 `mapstructure:"machine_id" json:"machine_id"`
}

// Prefixed 生成 "<prefix><base36>" 形式的字符串 ID，如 tr_k3x9a
func Prefixed(g Generator, prefix string) (string, error) {
	id, err := g.NextID()
	if err != nil {
		return "", err
	}
	return prefix + strconv.FormatInt(id, 36), nil
}

// Sequence 单进程递增生成器，测试中用于得到可预测的 ID
type Sequence struct {
	next atomic.Int64
}

// NewSequence 从 start 开始递增
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

func (s *Sequence) NextID() (int64, error) {
	return s.next.Add(1) - 1, nil
}
