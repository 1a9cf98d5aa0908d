package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retzger/centraldogma/internal/change"
	"github.com/retzger/centraldogma/internal/engineerr"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	r, err := CreateEmpty(t.TempDir(), "proj", "repo", Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestInitialCommitScenario(t *testing.T) {
	r := newTestRepo(t)
	require.EqualValues(t, 1, r.head)

	entries, err := r.Find(context.Background(), Revision(1), "/**", DefaultFindOptions())
	require.NoError(t, err)
	require.Equal(t, 0, entries.Len())

	history, err := r.History(context.Background(), RevisionRange{From: 1, To: 1}, "/**", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "Create a new repository", history[0].Summary)
}

func TestUpsertAndWatch(t *testing.T) {
	r := newTestRepo(t)

	type result struct {
		rev int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		rev, err := r.Watch(context.Background(), Revision(1), "/**")
		done <- result{rev, err}
	}()

	time.Sleep(20 * time.Millisecond) // let the watcher register before the commit lands

	rev, err := r.Commit(context.Background(), Revision(1), time.Now(), UnknownAuthor,
		"add test3", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/test/test3.json", []any{float64(42)})}, false)
	require.NoError(t, err)
	require.EqualValues(t, 2, rev)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.EqualValues(t, 2, res.rev)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not complete")
	}

	entries, err := r.Find(context.Background(), Revision(2), "/test/**", DefaultFindOptions())
	require.NoError(t, err)
	require.Equal(t, 2, entries.Len()) // the /test directory itself and /test/test3.json
	entry, ok := entries.Get("/test/test3.json")
	require.True(t, ok)
	require.Equal(t, EntryTypeJSON, entry.Type)
	require.Equal(t, []any{float64(42)}, entry.Content)
}

func TestIrrelevantChangeIsolation(t *testing.T) {
	r := newTestRepo(t)

	type result struct {
		rev int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		rev, err := r.Watch(context.Background(), Revision(1), "/test/test4.json")
		done <- result{rev, err}
	}()
	time.Sleep(20 * time.Millisecond)

	rev, err := r.Commit(context.Background(), Revision(1), time.Now(), UnknownAuthor,
		"irrelevant", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/test/test3.json", map[string]any{"a": 1})}, false)
	require.NoError(t, err)
	require.EqualValues(t, 2, rev)

	select {
	case res := <-done:
		t.Fatalf("watcher should not have completed yet, got %+v", res)
	case <-time.After(100 * time.Millisecond):
	}

	rev, err = r.Commit(context.Background(), Revision(2), time.Now(), UnknownAuthor,
		"relevant", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/test/test4.json", map[string]any{"b": 2})}, false)
	require.NoError(t, err)
	require.EqualValues(t, 3, rev)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.EqualValues(t, 3, res.rev)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not complete on the relevant commit")
	}
}

func TestStaleBaseRejected(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := r.Commit(ctx, HeadRevision, time.Now(), UnknownAuthor, "bump", "", MarkupPlaintext,
			[]change.Change{change.NewUpsertJSON("/c.json", map[string]any{"n": i})}, false)
		require.NoError(t, err)
	}
	require.EqualValues(t, 5, r.head)

	_, err := r.Commit(ctx, Revision(4), time.Now(), UnknownAuthor, "stale", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/d.json", map[string]any{"n": 1})}, false)
	require.True(t, engineerr.IsErrChangeConflict(err))

	rev, err := r.Commit(ctx, Revision(5), time.Now(), UnknownAuthor, "fresh", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/d.json", map[string]any{"n": 1})}, false)
	require.NoError(t, err)
	require.EqualValues(t, 6, rev)
}

func TestRedundantChangeRejected(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, Revision(1), time.Now(), UnknownAuthor, "add", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/e.json", map[string]any{"n": 1})}, false)
	require.NoError(t, err)

	_, err = r.Commit(ctx, Revision(2), time.Now(), UnknownAuthor, "no-op", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/e.json", map[string]any{"n": 1})}, false)
	require.Error(t, err)
	require.EqualValues(t, engineerr.RedundantChange, err.(*engineerr.Error).Kind)

	_, err = r.Commit(ctx, Revision(2), time.Now(), UnknownAuthor, "no-op allowed", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/e.json", map[string]any{"n": 1})}, true)
	require.NoError(t, err)
}

func TestTextPatchRoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	rev, err := r.Commit(ctx, Revision(1), time.Now(), UnknownAuthor, "add a.txt", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertText("/a.txt", "hello")}, false)
	require.NoError(t, err)
	require.EqualValues(t, 2, rev)

	diff := "@@ -1 +1 @@\n-hello\n+world\n"
	rev, err = r.Commit(ctx, Revision(2), time.Now(), UnknownAuthor, "patch a.txt", "", MarkupPlaintext,
		[]change.Change{change.NewApplyTextPatch("/a.txt", diff)}, false)
	require.NoError(t, err)
	require.EqualValues(t, 3, rev)

	entries, err := r.Find(ctx, Revision(3), "/a.txt", DefaultFindOptions())
	require.NoError(t, err)
	entry, ok := entries.Get("/a.txt")
	require.True(t, ok)
	require.Equal(t, "world\n", entry.Content)
}

func TestDiffAndHistory(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.Commit(ctx, Revision(1), time.Now(), UnknownAuthor, "add f", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/f.json", map[string]any{"v": 1})}, false)
	require.NoError(t, err)
	_, err = r.Commit(ctx, Revision(2), time.Now(), UnknownAuthor, "remove f", "", MarkupPlaintext,
		[]change.Change{change.NewRemove("/f.json")}, false)
	require.NoError(t, err)

	added, err := r.Diff(ctx, RevisionRange{From: 1, To: 2}, "/**")
	require.NoError(t, err)
	require.Len(t, added, 1)
	require.Equal(t, change.UpsertJSON, added["/f.json"].Kind)

	removed, err := r.Diff(ctx, RevisionRange{From: 2, To: 3}, "/**")
	require.NoError(t, err)
	require.Len(t, removed, 1)
	require.Equal(t, change.Remove, removed["/f.json"].Kind)

	history, err := r.History(ctx, RevisionRange{From: 1, To: 3}, "/**", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func TestGracefulShutdownFailsWatch(t *testing.T) {
	r := newTestRepo(t)

	type result struct {
		rev int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		rev, err := r.Watch(context.Background(), Revision(1), "/**")
		done <- result{rev, err}
	}()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, r.Close())

	select {
	case res := <-done:
		require.True(t, engineerr.IsErrShuttingDown(res.err))
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not fail on shutdown")
	}
}

func TestCloneReplaysHistory(t *testing.T) {
	src := newTestRepo(t)
	ctx := context.Background()

	_, err := src.Commit(ctx, Revision(1), time.Now(), UnknownAuthor, "add g", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/g.json", map[string]any{"v": 1})}, false)
	require.NoError(t, err)
	_, err = src.Commit(ctx, Revision(2), time.Now(), UnknownAuthor, "update g", "", MarkupPlaintext,
		[]change.Change{change.NewUpsertJSON("/g.json", map[string]any{"v": 2})}, false)
	require.NoError(t, err)

	dst, err := src.Clone(ctx, t.TempDir(), Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dst.Close() })

	require.EqualValues(t, src.head, dst.head)
	entries, err := dst.Find(ctx, HeadRevision, "/g.json", DefaultFindOptions())
	require.NoError(t, err)
	entry, ok := entries.Get("/g.json")
	require.True(t, ok)
	require.Equal(t, map[string]any{"v": float64(2)}, entry.Content)
}
