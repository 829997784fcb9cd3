// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stackedmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Increment-Finance/peripheral-contracts-sub004/stackedmap"
)

func newMap(src map[string]string) *stackedmap.StackedMap[string, string] {
	return stackedmap.New(func(key string) (string, bool, error) {
		v, ok := src[key]
		return v, ok, nil
	})
}

func TestStackedMap(t *testing.T) {
	sm := newMap(map[string]string{"foo": "bar"})

	get := func(key string) string {
		v, _, err := sm.Get(key)
		assert.NoError(t, err)
		return v
	}

	assert.Equal(t, 1, sm.Depth())
	assert.Equal(t, "bar", get("foo"))

	sm.Push()
	sm.Put("foo", "baz")
	assert.Equal(t, "baz", get("foo"))
	sm.Put("foo", "baz1")
	assert.Equal(t, "baz1", get("foo"))

	sm.Push()
	sm.Put("foo", "qux")
	assert.Equal(t, 3, sm.Depth())
	assert.Equal(t, "qux", get("foo"))

	sm.Pop()
	assert.Equal(t, "baz1", get("foo"))
	sm.Pop()
	assert.Equal(t, "bar", get("foo"))

	sm.Push()
	sm.Push()
	sm.PopTo(1)
	assert.Equal(t, 1, sm.Depth())
}

func TestStackedMapMissingKey(t *testing.T) {
	sm := newMap(map[string]string{})
	_, ok, err := sm.Get("nope")
	assert.NoError(t, err)
	assert.False(t, ok)

	sm.Put("nope", "yes")
	v, ok, _ := sm.Get("nope")
	assert.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestStackedMapJournal(t *testing.T) {
	sm := newMap(map[string]string{})

	sm.Put("a", "1")
	sm.Push()
	sm.Put("b", "2")
	sm.Put("a", "3")

	var keys, values []string
	sm.Journal(func(k, v string) bool {
		keys = append(keys, k)
		values = append(values, v)
		return true
	})
	assert.Equal(t, []string{"a", "b", "a"}, keys)
	assert.Equal(t, []string{"1", "2", "3"}, values)

	sm.Pop()
	keys = keys[:0]
	sm.Journal(func(k, _ string) bool {
		keys = append(keys, k)
		return true
	})
	assert.Equal(t, []string{"a"}, keys)
}
