package gitworkflow

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Workflow {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0o644))
	run("add", "-A")
	run("commit", "-m", "initial commit")

	return New(dir)
}

func TestEnsureFeatureBranchCreatesTimestampedBranch(t *testing.T) {
	w := newTestRepo(t)

	branch, created, err := w.EnsureFeatureBranch()
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, IsFeatureBranch(branch))

	again, created2, err := w.EnsureFeatureBranch()
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, branch, again)
}

func TestCommitWithShellMetacharactersIsPreservedVerbatim(t *testing.T) {
	w := newTestRepo(t)
	_, _, err := w.EnsureFeatureBranch()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(w.dir, "z.txt"), []byte("tracked"), 0o644))

	maliciousMessage := `a"; rm -rf / #`
	require.NoError(t, w.Commit(maliciousMessage))

	out, err := w.git("log", "-1", "--pretty=%B")
	require.NoError(t, err)
	require.Contains(t, out, maliciousMessage)

	// S6: the file must still exist; no shell interpolation occurred.
	_, err = os.Stat(filepath.Join(w.dir, "z.txt"))
	require.NoError(t, err)
}

func TestFinishSquashMergesAndReportsPartialSuccessOnBadRemote(t *testing.T) {
	w := newTestRepo(t)
	branch, _, err := w.EnsureFeatureBranch()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(w.dir, "feature.txt"), []byte("work"), 0o644))
	require.NoError(t, w.Commit("add feature file"))

	_, err = w.git("remote", "add", "origin", "https://example.invalid/does-not-exist.git")
	require.NoError(t, err)

	result, err := w.Finish(branch, true, true, "origin")
	require.NoError(t, err)
	require.NotEmpty(t, result.SquashCommit)
	require.False(t, result.Pushed)
	require.NotEmpty(t, result.PushError)
	require.True(t, result.BranchDeleted)

	_, err = os.Stat(filepath.Join(w.dir, "feature.txt"))
	require.NoError(t, err, "squash-merged file must exist on default branch")
}

func TestRollbackDeletesFeatureBranch(t *testing.T) {
	w := newTestRepo(t)
	branch, _, err := w.EnsureFeatureBranch()
	require.NoError(t, err)

	result, err := w.Rollback(branch)
	require.NoError(t, err)
	require.False(t, result.UncommittedChangesLost)

	branches, err := w.List()
	require.NoError(t, err)
	require.NotContains(t, branches, branch)
}

func TestRollbackRejectsNonFeatureBranch(t *testing.T) {
	w := newTestRepo(t)
	_, err := w.Rollback("main")
	require.Error(t, err)
}

func TestSwitchRequiresCleanTree(t *testing.T) {
	w := newTestRepo(t)
	_, _, err := w.EnsureFeatureBranch()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(w.dir, "dirty.txt"), []byte("uncommitted"), 0o644))

	err = w.Switch("main")
	require.Error(t, err)
}
