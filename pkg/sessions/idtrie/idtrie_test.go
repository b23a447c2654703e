package idtrie_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/masklinn/pytest-sessions/pkg/sessions/idtrie"
)

func TestTrie_Empty(t *testing.T) {
	tr := idtrie.New("/repo", nil)
	assert.True(t, tr.Empty())
	assert.False(t, tr.ContainsID("pkg/test_a.py::test_one"))

	tr = idtrie.New("/repo", []string{"pkg/test_a.py::test_one"})
	assert.False(t, tr.Empty())
}

func TestTrie_ContainsID(t *testing.T) {
	tr := idtrie.New("/repo", []string{
		"pkg/test_a.py::TestClass::test_one",
		"test_b.py::test_two",
	})

	// Exact identifiers
	assert.True(t, tr.ContainsID("pkg/test_a.py::TestClass::test_one"))
	assert.True(t, tr.ContainsID("test_b.py::test_two"))

	// Prefixes of an inserted identifier are contained
	assert.True(t, tr.ContainsID("pkg/test_a.py::TestClass"))
	assert.True(t, tr.ContainsID("pkg/test_a.py"))

	// Siblings and descendants are not
	assert.False(t, tr.ContainsID("pkg/test_a.py::TestClass::test_other"))
	assert.False(t, tr.ContainsID("pkg/test_a.py::TestClass::test_one::param"))
	assert.False(t, tr.ContainsID("test_b.py::test_three"))
}

func TestTrie_ContainsPath(t *testing.T) {
	tr := idtrie.New("/repo", []string{
		"pkg/sub/test_a.py::test_one",
	})

	// Relative paths, at every directory level
	assert.True(t, tr.ContainsPath("pkg"))
	assert.True(t, tr.ContainsPath("pkg/sub"))
	assert.True(t, tr.ContainsPath("pkg/sub/test_a.py"))
	assert.False(t, tr.ContainsPath("pkg/other"))
	assert.False(t, tr.ContainsPath("other"))

	// Absolute paths resolve against the trie root
	assert.True(t, tr.ContainsPath(filepath.Join("/repo", "pkg", "sub")))
	assert.False(t, tr.ContainsPath(filepath.Join("/elsewhere", "pkg", "sub")))
	assert.False(t, tr.ContainsPath("/repo/../outside/pkg"))
}
