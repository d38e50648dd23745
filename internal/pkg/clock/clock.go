package clock

import "time"

// Clock 提供当前时间，注入到需要"现在"的组件中以便测试固定时间
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System 返回读取系统时间的 Clock，时间统一为 UTC
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock 总是返回同一时刻
type FixedClock struct {
	t time.Time
}

// Fixed 返回固定在 t 的 Clock
func Fixed(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	return c.t
}

// Advance 将固定时刻向后推移 d
func (c *FixedClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}
