package model

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"PPSocial/tools/errs"
)

const (
	DefaultPageSize        = 50
	DefaultMaxImages       = 10
	DefaultMaxContentRunes = 4000
)

// Message 会话内嵌的一条消息
type Message struct {
	Seq       int64     `bson:"seq" json:"seq"`       // 会话内序号，与 timestamp 一起构成全序
	MsgID     string    `bson:"msg_id" json:"msgId"`  // 雪花ID，客户端去重
	Sender    string    `bson:"sender" json:"sender"` // 必须是会话成员
	Content   string    `bson:"content" json:"content"`
	ImageURLs []string  `bson:"image_urls" json:"imageUrls"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"` // 服务端落库时间
	ReadBy    []string  `bson:"read_by" json:"readBy"`      // 只增不减
}

// Limits 消息内容约束
type Limits struct {
	MaxImages       int
	MaxContentRunes int
}

func DefaultLimits() Limits {
	return Limits{MaxImages: DefaultMaxImages, MaxContentRunes: DefaultMaxContentRunes}
}

// Normalize 去掉首尾空白与空图片地址，并校验长度：文字和图片至少要有一个
func (l Limits) Normalize(content string, images []string) (string, []string, error) {
	content = strings.TrimSpace(content)
	kept := make([]string, 0, len(images))
	for _, u := range images {
		if u = strings.TrimSpace(u); u != "" {
			kept = append(kept, u)
		}
	}
	if content == "" && len(kept) == 0 {
		return "", nil, errs.ErrValidation.WrapMsg("empty message")
	}
	if l.MaxImages > 0 && len(kept) > l.MaxImages {
		return "", nil, errs.ErrValidation.WrapMsg("too many images", "max", l.MaxImages)
	}
	if l.MaxContentRunes > 0 && utf8.RuneCountInString(content) > l.MaxContentRunes {
		return "", nil, errs.ErrValidation.WrapMsg("content too long", "max", l.MaxContentRunes)
	}
	return content, kept, nil
}

// Before 按 (timestamp, seq) 比较
func (m *Message) Before(o *Message) bool {
	if !m.Timestamp.Equal(o.Timestamp) {
		return m.Timestamp.Before(o.Timestamp)
	}
	return m.Seq < o.Seq
}

// Page 取第 page 页（从 1 开始）：按新到旧切片后再翻转为旧到新。
// 不修改 msgs。
func Page(msgs []*Message, page, size int) []*Message {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	sorted := make([]*Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[j].Before(sorted[i]) })

	// 先按页数判断越界，避免 (page-1)*size 溢出
	if page-1 >= (len(sorted)+size-1)/size {
		return []*Message{}
	}
	start := (page - 1) * size
	end := start + size
	if end > len(sorted) {
		end = len(sorted)
	}
	out := make([]*Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, sorted[i])
	}
	return out
}
