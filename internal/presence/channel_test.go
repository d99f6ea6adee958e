package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelForCommutative(t *testing.T) {
	ab, err := ChannelFor("alice-uuid", "bob-uuid")
	require.NoError(t, err)
	ba, err := ChannelFor("bob-uuid", "alice-uuid")
	require.NoError(t, err)

	assert.Equal(t, ab, ba)
	assert.Equal(t, "chat:alice-uuid:bob-uuid", ab)
}

func TestChannelForOrdersLexicographically(t *testing.T) {
	// uuid 仅当作不透明字符串比较，不解析
	ch, err := ChannelFor("zzz", "aaa")
	require.NoError(t, err)
	assert.Equal(t, "chat:aaa:zzz", ch)
}

func TestChannelForRejectsSameUser(t *testing.T) {
	_, err := ChannelFor("alice-uuid", "alice-uuid")
	assert.ErrorIs(t, err, ErrSameUser)
}

func TestChannelForRejectsEmptyUser(t *testing.T) {
	_, err := ChannelFor("", "bob-uuid")
	assert.ErrorIs(t, err, ErrEmptyUser)

	_, err = ChannelFor("alice-uuid", "")
	assert.ErrorIs(t, err, ErrEmptyUser)
}

func TestPersonalChannel(t *testing.T) {
	assert.Equal(t, "user:alice-uuid", PersonalChannel("alice-uuid"))
}
