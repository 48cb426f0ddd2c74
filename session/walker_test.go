package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkfetch/internal"
	"linkfetch/remote"
)

func TestList_PreOrder(t *testing.T) {
	root := folder("root",
		file("a.txt", 10),
		folder("sub", file("b.bin", 2048)),
	)
	api := newFakeAPI(root)

	entries, err := List(api, root, nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	wantNames := []string{"root", "a.txt", "sub", "b.bin"}
	wantDepths := []int{0, 1, 1, 2}
	for i, e := range entries {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, wantNames[i], e.Name)
		assert.Equal(t, wantDepths[i], e.Depth)
	}

	assert.Equal(t, "./root", entries[0].Label)
	assert.Equal(t, "\ta.txt\t10 B", entries[1].Label)
	assert.Equal(t, "\t./sub", entries[2].Label)
	assert.Equal(t, "\t\tb.bin\t2.0 KB", entries[3].Label)
	assert.Equal(t, remote.Handle("root/sub/b.bin"), entries[3].Handle)
	assert.True(t, entries[2].IsFolder())
	assert.Zero(t, entries[2].Size)
}

func TestList_SingleFile(t *testing.T) {
	api := newFakeAPI(nil)
	f := file("movie.mkv", 1536)
	api.setPublic(f)

	entries, err := List(api, f, nil, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "movie.mkv\t1.5 KB", entries[0].Label)
}

func TestList_NilNode(t *testing.T) {
	entries, err := List(newFakeAPI(nil), nil, nil, 0)
	assert.Empty(t, entries)
	assert.True(t, internal.IsType(err, internal.ErrNotLoggedIn))
}

func TestList_AppendsToAccumulator(t *testing.T) {
	root := folder("root", file("x", 1))
	api := newFakeAPI(root)

	acc := []Entry{{Index: 0, Name: "existing"}}
	entries, err := List(api, root, acc, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, 1, entries[1].Index)
	assert.Equal(t, 3, entries[1].Depth)
	assert.Equal(t, 4, entries[2].Depth)
}

func TestList_Restartable(t *testing.T) {
	root := folder("root", file("x", 1), file("y", 2))
	api := newFakeAPI(root)

	first, err := List(api, root, nil, 0)
	require.NoError(t, err)
	second, err := List(api, root, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRender(t *testing.T) {
	root := folder("root", file("a.txt", 10))
	entries, err := List(newFakeAPI(root), root, nil, 0)
	require.NoError(t, err)

	assert.Equal(t, "0\t./root\n1\t\ta.txt\t10 B\n", Render(entries))
}
