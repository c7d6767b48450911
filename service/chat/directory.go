package chat

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

const shardCount = 64

type shard struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Conn // user -> conn_id -> conn
}

// Directory 用户个人通道 -> 本节点在线连接。按用户ID分片，每片一把读写锁，
// 不同用户的注册/投递互不阻塞。
type Directory struct {
	shards [shardCount]*shard
	total  atomic.Int64
}

func NewDirectory() *Directory {
	d := &Directory{}
	for i := range d.shards {
		d.shards[i] = &shard{byUser: make(map[string]map[string]*Conn)}
	}
	return d
}

func (d *Directory) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return d.shards[h.Sum32()%shardCount]
}

// Register 把连接挂到其用户的个人通道上；连接必须已认证
func (d *Directory) Register(c *Conn) {
	s := d.shardFor(c.UserID())
	s.mu.Lock()
	m := s.byUser[c.UserID()]
	if m == nil {
		m = make(map[string]*Conn)
		s.byUser[c.UserID()] = m
	}
	if _, ok := m[c.ID()]; !ok {
		m[c.ID()] = c
		d.total.Add(1)
	}
	s.mu.Unlock()
}

// Unregister 返回连接此前是否在目录中
func (d *Directory) Unregister(c *Conn) bool {
	s := d.shardFor(c.UserID())
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.byUser[c.UserID()]
	if _, ok := m[c.ID()]; !ok {
		return false
	}
	delete(m, c.ID())
	if len(m) == 0 {
		delete(s.byUser, c.UserID())
	}
	d.total.Add(-1)
	return true
}

// Publish 投给该用户在本节点的所有连接，返回成功入队的连接数。没有连接时什么也不做。
func (d *Directory) Publish(userID string, frame []byte) int {
	s := d.shardFor(userID)
	s.mu.RLock()
	m := s.byUser[userID]
	conns := make([]*Conn, 0, len(m))
	for _, c := range m {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	n := 0
	for _, c := range conns {
		if c.Enqueue(frame) {
			n++
		}
	}
	return n
}

// Online 该用户在本节点的连接数
func (d *Directory) Online(userID string) int {
	s := d.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser[userID])
}

func (d *Directory) Count() int { return int(d.total.Load()) }

// CloseAll 关闭所有连接（停机时用）
func (d *Directory) CloseAll() {
	var all []*Conn
	for _, s := range d.shards {
		s.mu.RLock()
		for _, m := range s.byUser {
			for _, c := range m {
				all = append(all, c)
			}
		}
		s.mu.RUnlock()
	}
	for _, c := range all {
		c.Close()
	}
}
