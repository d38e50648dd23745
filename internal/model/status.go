package model

import (
	"errors"
	"fmt"
)

// Status 订阅状态
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusCanceled Status = "CANCELED"
	StatusExpired  Status = "EXPIRED"
)

var ErrIllegalTransition = errors.New("illegal status transition")

// transitions 合法的状态迁移，未列出的状态为终态
var transitions = map[Status][]Status{
	StatusActive: {StatusCanceled, StatusExpired},
}

// IsTerminal 是否为终态（不允许再迁移）
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition 是否允许从 from 迁移到 to
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition 校验迁移，不合法时返回包装了 ErrIllegalTransition 的错误
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return nil
}
