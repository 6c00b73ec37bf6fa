package models

import (
	"time"
)

// Subject 被浏览/投票/评论的条目 (plugin 或 showcase) 及其聚合计数
type Subject struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Kind      string    `gorm:"size:20;not null;default:'plugin'" json:"kind"` // plugin, showcase
	Title     string    `gorm:"not null" json:"title"`
	Views     int       `gorm:"not null;default:0" json:"views"`
	Upvotes   int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int       `gorm:"not null;default:0" json:"downvotes"`
	Score     int       `gorm:"not null;default:0" json:"score"` // always Upvotes - Downvotes
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 非数据库字段，用于查询时填充
	CommentCount int `gorm:"-" json:"comment_count"`
}

// CounterDelta is a relative change to a subject's counters. Score follows Upvotes - Downvotes.
type CounterDelta struct {
	Views     int
	Upvotes   int
	Downvotes int
}

func (d CounterDelta) Score() int {
	return d.Upvotes - d.Downvotes
}

func (d CounterDelta) IsZero() bool {
	return d.Views == 0 && d.Upvotes == 0 && d.Downvotes == 0
}
