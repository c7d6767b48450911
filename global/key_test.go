package global

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairKeyOrderIndependent(t *testing.T) {
	assert.Equal(t, PairKey("b", "a"), PairKey("a", "b"))
	assert.Equal(t, "a:b", PairKey("b", "a"))
}

func TestDeliverSubject(t *testing.T) {
	s := DeliverSubject("pps.deliver", "u-1")
	assert.Equal(t, "pps.deliver.u-1", s)
	assert.Equal(t, "pps.deliver.*", DeliverWildcard("pps.deliver"))

	uid, ok := UserFromSubject("pps.deliver", s)
	assert.True(t, ok)
	assert.Equal(t, "u-1", uid)

	_, ok = UserFromSubject("pps.deliver", "pps.other.u-1")
	assert.False(t, ok)
	_, ok = UserFromSubject("pps.deliver", "pps.deliver.")
	assert.False(t, ok)
}
