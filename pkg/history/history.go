// Package history 实现基于完整快照的撤销/重做日志
package history

import "github.com/novvoo/go-pdfsign/pkg/overlay"

// Log 撤销/重做栈，条目为变更之前的完整叠加层快照
// 不支持分支：记录新条目会丢弃重做栈
type Log struct {
	past   []overlay.Snapshot
	future []overlay.Snapshot
	limit  int
}

// New 创建日志，limit 为撤销栈深度，0 表示不限
func New(limit int) *Log {
	if limit < 0 {
		limit = 0
	}
	return &Log{limit: limit}
}

// Record 记录变更前的状态并清空重做栈
func (l *Log) Record(before overlay.Snapshot) {
	l.past = append(l.past, before.Clone())
	if l.limit > 0 && len(l.past) > l.limit {
		drop := len(l.past) - l.limit
		l.past = append(l.past[:0:0], l.past[drop:]...)
	}
	l.future = nil
}

// Undo 弹出最近的过去条目，把当前状态压入重做栈
// 过去栈为空时返回 false
func (l *Log) Undo(current overlay.Snapshot) (overlay.Snapshot, bool) {
	if len(l.past) == 0 {
		return overlay.Snapshot{}, false
	}
	prev := l.past[len(l.past)-1]
	l.past = l.past[:len(l.past)-1]
	l.future = append(l.future, current.Clone())
	return prev.Clone(), true
}

// Redo 与 Undo 对称
func (l *Log) Redo(current overlay.Snapshot) (overlay.Snapshot, bool) {
	if len(l.future) == 0 {
		return overlay.Snapshot{}, false
	}
	next := l.future[len(l.future)-1]
	l.future = l.future[:len(l.future)-1]
	l.past = append(l.past, current.Clone())
	return next.Clone(), true
}

// CanUndo 是否可以撤销
func (l *Log) CanUndo() bool { return len(l.past) > 0 }

// CanRedo 是否可以重做
func (l *Log) CanRedo() bool { return len(l.future) > 0 }

// Len 返回过去栈与重做栈的长度
func (l *Log) Len() (past, future int) {
	return len(l.past), len(l.future)
}

// Reset 清空全部历史
func (l *Log) Reset() {
	l.past = nil
	l.future = nil
}
