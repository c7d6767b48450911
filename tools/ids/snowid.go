package ids

import (
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
	tsMask   = 1<<41 - 1
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator 雪花ID：41位毫秒时间戳 | 10位节点 | 12位序列
type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	seq      int64
	lastTSMS int64
	now      func() time.Time
}

func NewGenerator(nodeID int64) *Generator {
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	return &Generator{nodeID: nodeID, now: time.Now}
}

var (
	defaultGen = NewGenerator(1)
	defaultMu  sync.RWMutex
)

// SetNodeID 设置 nodeID（0~1023），在 main() 初始化时调用
func SetNodeID(nodeID int64) {
	defaultMu.Lock()
	defaultGen = NewGenerator(nodeID)
	defaultMu.Unlock()
}

func NodeID() int64 {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultGen.nodeID
}

// Generate 生成一个新的雪花ID
func Generate() int64 {
	defaultMu.RLock()
	g := defaultGen
	defaultMu.RUnlock()
	return g.Next()
}

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

// Time returns the wall-clock millisecond encoded in id.
func Time(id int64) time.Time {
	return epoch.Add(time.Duration(id>>(nodeBits+seqBits)) * time.Millisecond)
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UnixMilli()
	if now < g.lastTSMS {
		// 时钟回拨：沿用上一毫秒继续递增
		now = g.lastTSMS
	}
	if now == g.lastTSMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// 序列溢出，借用下一毫秒
			now++
		}
	} else {
		g.seq = 0
	}
	g.lastTSMS = now

	ts := (now - epoch.UnixMilli()) & tsMask
	return ts<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq
}
