package doctree

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/GriffinCanCode/filedeck/internal/infrastructure/store"
	"github.com/GriffinCanCode/filedeck/internal/shared/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newTree grants a temp dir populated with a small fixture tree
func newTree(t *testing.T) (*LocalTree, Root, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "hello world\n")
	writeFile(t, filepath.Join(dir, "data", "people.csv"), "name,age\nann,30\n")
	writeFile(t, filepath.Join(dir, "data", "deep", "more.csv"), "a,b\n")
	writeFile(t, filepath.Join(dir, ".hidden"), "secret")

	tree, err := NewLocalTree(nil, nil)
	require.NoError(t, err)
	root, err := tree.Grant(dir)
	require.NoError(t, err)
	return tree, root, dir
}

func uri(root Root, rel string) string {
	return paths.DocumentURI(root.ID, rel)
}

func TestGrant(t *testing.T) {
	tree, root, dir := newTree(t)

	assert.Equal(t, RootID(dir), root.ID)
	assert.Equal(t, filepath.Base(dir), root.Name)

	again, err := tree.Grant(dir)
	require.NoError(t, err)
	assert.Equal(t, root, again, "granting twice is idempotent")
	assert.Len(t, tree.Roots(), 1)

	_, err = tree.Grant(filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(t, err, ErrNotDir)

	_, err = tree.Grant(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevoke(t *testing.T) {
	tree, root, _ := newTree(t)

	require.NoError(t, tree.Revoke(root.ID))
	assert.Empty(t, tree.Roots())

	_, err := tree.Stat(uri(root, "notes.txt"))
	assert.ErrorIs(t, err, ErrUnknownRoot)
	assert.ErrorIs(t, tree.Revoke(root.ID), ErrUnknownRoot)
}

func TestGrantsPersist(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	defer st.Close()

	dir := t.TempDir()
	tree, err := NewLocalTree(st, nil)
	require.NoError(t, err)
	root, err := tree.Grant(dir)
	require.NoError(t, err)

	restored, err := NewLocalTree(st, nil)
	require.NoError(t, err)
	got, err := restored.Root(root.ID)
	require.NoError(t, err)
	assert.Equal(t, root.Path, got.Path)

	require.NoError(t, restored.Revoke(root.ID))
	again, err := NewLocalTree(st, nil)
	require.NoError(t, err)
	assert.Empty(t, again.Roots())
}

func TestList(t *testing.T) {
	tree, root, _ := newTree(t)

	docs, err := tree.List(root.URI())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "data", docs[0].Name, "directories first")
	assert.True(t, docs[0].IsDir)
	assert.Equal(t, ".hidden", docs[1].Name)
	assert.True(t, docs[1].Hidden)
	assert.Equal(t, "notes.txt", docs[2].Name)
	assert.Equal(t, uri(root, "notes.txt"), docs[2].URI)
	assert.Equal(t, int64(12), docs[2].Size)
	assert.True(t, strings.HasPrefix(docs[2].MIMEType, "text/plain"))

	assert.Len(t, FilterHidden(docs, false), 2)

	_, err = tree.List(uri(root, "notes.txt"))
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestStatRoot(t *testing.T) {
	tree, root, _ := newTree(t)

	doc, err := tree.Stat(root.URI())
	require.NoError(t, err)
	assert.True(t, doc.IsDir)
	assert.Equal(t, root.Name, doc.Name)
	assert.Equal(t, "", doc.Path)
}

func TestEscapesRejected(t *testing.T) {
	tree, root, dir := newTree(t)

	_, err := tree.Stat("doc://" + root.ID + "/../etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "secret.txt"), "x")
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	_, err = tree.Stat(uri(root, "link/secret.txt"))
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = tree.Stat("file:///etc/passwd")
	assert.ErrorIs(t, err, paths.ErrInvalidURI)
}

func TestReadAll(t *testing.T) {
	tree, root, _ := newTree(t)

	data, truncated, err := tree.ReadAll(uri(root, "notes.txt"), 0)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, "hello world\n", string(data))

	data, truncated, err = tree.ReadAll(uri(root, "notes.txt"), 5)
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.Equal(t, "hello", string(data))

	_, _, err = tree.ReadAll(uri(root, "data"), 0)
	assert.ErrorIs(t, err, ErrIsDir)

	_, _, err = tree.ReadAll(uri(root, "nope.txt"), 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWrite(t *testing.T) {
	tree, root, dir := newTree(t)

	doc, n, err := tree.Write(uri(root, "notes.txt"), strings.NewReader("replaced"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, int64(8), doc.Size)

	got, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(got))

	_, _, err = tree.Write(uri(root, "data/new.txt"), strings.NewReader("new"))
	require.NoError(t, err, "writing a missing file creates it")

	_, _, err = tree.Write(uri(root, "missing/dir/x.txt"), strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = tree.Write(uri(root, "data"), strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrIsDir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".filedeck-"), "temp file left behind")
	}
}

func TestCreateDeleteRename(t *testing.T) {
	tree, root, dir := newTree(t)

	folder, err := tree.Create(root.URI(), "archive", true)
	require.NoError(t, err)
	assert.True(t, folder.IsDir)

	file, err := tree.Create(folder.URI, "todo.md", false)
	require.NoError(t, err)
	assert.Equal(t, uri(root, "archive/todo.md"), file.URI)

	_, err = tree.Create(folder.URI, "todo.md", false)
	assert.ErrorIs(t, err, ErrExists)

	_, err = tree.Create(root.URI(), "../evil", false)
	assert.Error(t, err)

	renamed, err := tree.Rename(file.URI, "done.md")
	require.NoError(t, err)
	assert.Equal(t, uri(root, "archive/done.md"), renamed.URI)
	assert.FileExists(t, filepath.Join(dir, "archive", "done.md"))

	_, err = tree.Rename(uri(root, "notes.txt"), "data")
	assert.ErrorIs(t, err, ErrExists)

	require.NoError(t, tree.Delete(folder.URI))
	assert.NoDirExists(t, filepath.Join(dir, "archive"))

	assert.ErrorIs(t, tree.Delete(root.URI()), ErrRootOp)
	assert.ErrorIs(t, tree.Delete(uri(root, "ghost")), ErrNotFound)
	_, err = tree.Rename(root.URI(), "x")
	assert.ErrorIs(t, err, ErrRootOp)
}

func TestWalk(t *testing.T) {
	tree, root, _ := newTree(t)

	collect := func(depth int) []string {
		var got []string
		err := tree.Walk(context.Background(), root.URI(), depth, func(d Document) error {
			got = append(got, d.Path)
			return nil
		})
		require.NoError(t, err)
		sort.Strings(got)
		return got
	}

	assert.Equal(t, []string{".hidden", "data", "data/deep", "data/deep/more.csv", "data/people.csv", "notes.txt"}, collect(0))
	assert.Equal(t, []string{".hidden", "data", "notes.txt"}, collect(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := tree.Walk(ctx, root.URI(), 0, func(Document) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGlob(t *testing.T) {
	tree, root, _ := newTree(t)

	docs, err := tree.Glob(context.Background(), root.URI(), "**/*.csv")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "data/deep/more.csv", docs[0].Path)
	assert.Equal(t, "data/people.csv", docs[1].Path)

	docs, err = tree.Glob(context.Background(), uri(root, "data"), "*.csv")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, uri(root, "data/people.csv"), docs[0].URI)

	_, err = tree.Glob(context.Background(), root.URI(), "[")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	tree, root, dir := newTree(t)

	abs, err := tree.Resolve(uri(root, "data/people.csv"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "people.csv"), abs)
}

func TestSortDocuments(t *testing.T) {
	docs := []Document{
		{Name: "b.txt", Size: 10},
		{Name: "A.txt", Size: 30},
		{Name: "dir", IsDir: true},
		{Name: "c.txt", Size: 20},
	}

	SortDocuments(docs, SortByName)
	assert.Equal(t, []string{"dir", "A.txt", "b.txt", "c.txt"}, names(docs))

	SortDocuments(docs, SortBySize)
	assert.Equal(t, []string{"dir", "A.txt", "c.txt", "b.txt"}, names(docs))

	assert.Equal(t, SortByModified, ParseSortOrder("Modified"))
	assert.Equal(t, SortByName, ParseSortOrder("bogus"))
}

func TestIsText(t *testing.T) {
	assert.True(t, IsText("text/plain; charset=utf-8"))
	assert.True(t, IsText("application/json"))
	assert.False(t, IsText("image/png"))
}

func names(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Name
	}
	return out
}
