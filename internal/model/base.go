// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"github.com/google/uuid"
)

// newID 为空主键生成 UUID，供各模型的 BeforeCreate 使用。
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All 返回需要建表的全部模型。
func All() []interface{} {
	return []interface{}{
		&DoubtSession{},
		&DoubtMessage{},
		&Material{},
		&MaterialChunk{},
		&Quiz{},
		&QuizQuestion{},
		&QuizAttempt{},
		&AIUsageLog{},
		&XPLog{},
		&StudySession{},
		&UserStreak{},
	}
}
