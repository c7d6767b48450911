package global

import (
	"sort"
	"strings"
)

const (
	sessionKeyPrefix  = "pps:sess:"
	presenceKeyPrefix = "pps:presence:"
)

// SessionKey web 会话：pps:sess:<sid> -> userId
func SessionKey(sid string) string { return sessionKeyPrefix + sid }

// PresenceKey 在线状态：pps:presence:<user>，hash 字段为节点号，值为该节点上的连接数
func PresenceKey(userID string) string { return presenceKeyPrefix + userID }

// PairKey 两人会话的唯一键，与参与者顺序无关
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// DeliverSubject 跨节点投递：<prefix>.<userId>
func DeliverSubject(prefix, userID string) string {
	return prefix + "." + userID
}

// DeliverWildcard 订阅所有用户的投递
func DeliverWildcard(prefix string) string {
	return prefix + ".*"
}

// UserFromSubject 从投递 subject 取出 userId；不匹配时返回 false
func UserFromSubject(prefix, subject string) (string, bool) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok || rest == "" || strings.Contains(rest, ".") {
		return "", false
	}
	return rest, true
}
