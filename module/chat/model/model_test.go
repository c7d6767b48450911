package model

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"PPSocial/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantsInvariant(t *testing.T) {
	_, err := Participants("a")
	assert.True(t, errors.Is(err, errs.ErrInvalidParticipants))

	_, err = Participants("a", "b", "c")
	assert.True(t, errors.Is(err, errs.ErrInvalidParticipants))

	_, err = Participants("a", " ")
	assert.True(t, errors.Is(err, errs.ErrInvalidParticipants))

	_, err = Participants("a", "a")
	assert.True(t, errors.Is(err, errs.ErrSelfMessage))
	assert.True(t, errors.Is(err, errs.ErrValidation))

	ps, err := Participants("b", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ps)
}

func TestConversationPeer(t *testing.T) {
	c, err := NewConversation("u2", "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "u1:u2", c.PairKey)
	assert.True(t, c.HasParticipant("u1"))
	assert.False(t, c.HasParticipant("u3"))
	assert.Equal(t, "u2", c.Peer("u1"))
	assert.Nil(t, c.Summary().Last)
}

func TestLimitsNormalize(t *testing.T) {
	l := DefaultLimits()

	content, imgs, err := l.Normalize("  hi  ", []string{" a.png ", "", "  "})
	require.NoError(t, err)
	assert.Equal(t, "hi", content)
	assert.Equal(t, []string{"a.png"}, imgs)

	content, imgs, err = l.Normalize("", []string{"a.png"})
	require.NoError(t, err)
	assert.Empty(t, content)
	assert.Len(t, imgs, 1)

	_, _, err = l.Normalize("   ", []string{" "})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, _, err = l.Normalize("x", make([]string, 11))
	assert.NoError(t, err, "blank refs are dropped before counting")

	many := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}
	_, _, err = l.Normalize("x", many)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, _, err = l.Normalize(strings.Repeat("é", 4001), nil)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	_, _, err = l.Normalize(strings.Repeat("é", 4000), nil)
	assert.NoError(t, err)
}

func buildLog(n int) []*Message {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*Message, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &Message{Seq: int64(i), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	return out
}

func TestPagePartitionsHistory(t *testing.T) {
	log := buildLog(120)

	p1 := Page(log, 1, 50)
	p2 := Page(log, 2, 50)
	p3 := Page(log, 3, 50)
	p4 := Page(log, 4, 50)

	require.Len(t, p1, 50)
	require.Len(t, p2, 50)
	require.Len(t, p3, 20)
	assert.Empty(t, p4)

	// 第一页是最新的 50 条，页内旧到新
	assert.Equal(t, int64(71), p1[0].Seq)
	assert.Equal(t, int64(120), p1[49].Seq)
	assert.Equal(t, int64(21), p2[0].Seq)
	assert.Equal(t, int64(1), p3[0].Seq)
	assert.Equal(t, int64(20), p3[19].Seq)

	assert.Equal(t, p1, Page(log, 0, 50))
	assert.Equal(t, int64(1), log[0].Seq, "input untouched")
}

func TestPageTieBreaksOnSeq(t *testing.T) {
	ts := time.Now()
	log := []*Message{{Seq: 2, Timestamp: ts}, {Seq: 1, Timestamp: ts}, {Seq: 3, Timestamp: ts}}
	got := Page(log, 1, 50)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].Seq, got[1].Seq, got[2].Seq})
}

func TestPageHugeIndexIsEmpty(t *testing.T) {
	log := buildLog(120)
	for _, page := range []int{math.MaxInt64, math.MaxInt64/50 + 2, math.MaxInt64 / 50} {
		assert.Empty(t, Page(log, page, 50), "page %d", page)
	}
	assert.Empty(t, Page(nil, 1, 50))
}
