// Package gitworkflow implements GitWorkflow (C8): auto-branching feature
// commits against a local Git mirror, invoked as a child process with
// argv-only arguments — never a shell string — so a commit message or
// branch name can never be interpreted as shell syntax (P5, S6).
package gitworkflow

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/logger"
	"github.com/mcpgas/mcp-gas/pkg/mcperrors"
)

var gitLog = logger.New("gitworkflow:git")

// nameRE validates branch and remote names. Branches additionally forbid
// a leading '-' (which exec.Command would otherwise parse as a flag) and
// an embedded "--" (an argument-list terminator git itself recognizes).
var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validateName(kind, name string) error {
	if !nameRE.MatchString(name) {
		return mcperrors.New(mcperrors.KindValidation, "invalid %s name %q: must match %s", kind, name, nameRE.String())
	}
	if kind == "branch" {
		if strings.HasPrefix(name, "-") {
			return mcperrors.New(mcperrors.KindValidation, "invalid branch name %q: must not start with '-'", name)
		}
		if strings.Contains(name, "--") {
			return mcperrors.New(mcperrors.KindValidation, "invalid branch name %q: must not contain '--'", name)
		}
	}
	return nil
}

// Workflow is the GitWorkflow implementation, rooted at one project's
// working directory. The mutex serializes writes within this project;
// distinct Workflow instances (distinct projects) run concurrently, per
// the single-writer-per-project-directory resource model (§5).
type Workflow struct {
	mu  sync.Mutex
	dir string
}

// New constructs a Workflow rooted at dir, which must already be (or be
// made into) a git working tree.
func New(dir string) *Workflow {
	return &Workflow{dir: dir}
}

func (w *Workflow) git(args ...string) (string, error) {
	cmd := exec.Command("git", append([]string{"-C", w.dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		gitLog.Printf("git %s failed: %v: %s", strings.Join(args, " "), err, out)
		return string(out), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// IsRepo reports whether dir is (inside) a git working tree.
func (w *Workflow) IsRepo() bool {
	_, err := w.git("rev-parse", "--git-dir")
	return err == nil
}

// Init creates a git repository at dir if one does not already exist.
func (w *Workflow) Init() error {
	if w.IsRepo() {
		return nil
	}
	_, err := w.git("init")
	return err
}

// CurrentBranch returns the current branch name, or "" if HEAD is
// detached.
func (w *Workflow) CurrentBranch() (string, error) {
	out, err := w.git("branch", "--show-current")
	if err != nil {
		return "", mcperrors.Wrap(mcperrors.KindFileSystem, err, "reading current branch")
	}
	return strings.TrimSpace(out), nil
}

// IsFeatureBranch reports whether name begins with the feature-branch
// prefix.
func IsFeatureBranch(name string) bool {
	return strings.HasPrefix(name, constants.FeatureBranchPrefix)
}

// IsClean reports whether the working tree has no uncommitted changes.
func (w *Workflow) IsClean() (bool, error) {
	out, err := w.git("status", "--porcelain")
	if err != nil {
		return false, mcperrors.Wrap(mcperrors.KindFileSystem, err, "checking working tree status")
	}
	return strings.TrimSpace(out) == "", nil
}

func (w *Workflow) requireClean() error {
	clean, err := w.IsClean()
	if err != nil {
		return err
	}
	if !clean {
		return mcperrors.New(mcperrors.KindValidation, "working directory has uncommitted changes; commit or stash first")
	}
	return nil
}

// DefaultBranch resolves the repository's default branch: origin/HEAD
// symref, falling back to main, master, and finally the current branch.
func (w *Workflow) DefaultBranch() (string, error) {
	if out, err := w.git("symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		ref := strings.TrimSpace(out)
		if idx := strings.LastIndex(ref, "/"); idx >= 0 {
			return ref[idx+1:], nil
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if _, err := w.git("show-ref", "--verify", "--quiet", "refs/heads/"+candidate); err == nil {
			return candidate, nil
		}
	}
	return w.CurrentBranch()
}

// HasRemote reports whether the named remote is configured.
func (w *Workflow) HasRemote(remote string) bool {
	_, err := w.git("remote", "get-url", remote)
	return err == nil
}

// EnsureFeatureBranch implements the auto-branching rule the write path
// runs before mutating files: reuse the current branch if it is already a
// feature branch, else create a fresh timestamp-suffixed one.
func (w *Workflow) EnsureFeatureBranch() (branch string, created bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	current, err := w.CurrentBranch()
	if err != nil {
		return "", false, err
	}
	if IsFeatureBranch(current) {
		return current, false, nil
	}

	if err := w.requireClean(); err != nil {
		return "", false, err
	}

	name := constants.FeatureBranchPrefix + "auto-" + nowFunc().Format(constants.AutoFeatureBranchTimeLayout)
	if _, err := w.git("checkout", "-b", name); err != nil {
		return "", false, mcperrors.Wrap(mcperrors.KindFileSystem, err, "creating feature branch %s", name)
	}
	return name, true, nil
}

// nowFunc is indirected so tests can pin the auto-branch timestamp.
var nowFunc = time.Now

// Start implements start(name): requires a clean tree and a non-feature
// current branch, then creates llm-feature-<name>.
func (w *Workflow) Start(name string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := validateName("branch", name); err != nil {
		return "", err
	}
	current, err := w.CurrentBranch()
	if err != nil {
		return "", err
	}
	if IsFeatureBranch(current) {
		return "", mcperrors.New(mcperrors.KindValidation, "already on feature branch %s", current)
	}
	if err := w.requireClean(); err != nil {
		return "", err
	}

	branch := constants.FeatureBranchPrefix + name
	if _, err := w.git("checkout", "-b", branch); err != nil {
		return "", mcperrors.Wrap(mcperrors.KindFileSystem, err, "creating branch %s", branch)
	}
	return branch, nil
}

// Commit implements commit(msg): requires HEAD not detached and changes
// present; stages everything then commits with msg passed as a single
// argv element, never interpolated into a shell (P5, S6).
func (w *Workflow) Commit(message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	branch, err := w.CurrentBranch()
	if err != nil {
		return err
	}
	if branch == "" {
		return mcperrors.New(mcperrors.KindValidation, "cannot commit in detached HEAD state")
	}

	clean, err := w.IsClean()
	if err != nil {
		return err
	}
	if clean {
		return mcperrors.New(mcperrors.KindValidation, "no changes to commit")
	}

	if _, err := w.git("add", "-A"); err != nil {
		return mcperrors.Wrap(mcperrors.KindFileSystem, err, "staging changes")
	}
	if _, err := w.git("commit", "-m", message); err != nil {
		return mcperrors.Wrap(mcperrors.KindFileSystem, err, "committing")
	}
	return nil
}

// Push implements push(remote, branch?): requires HEAD not detached and
// the remote to exist; pushes with -u, mapping known failures to
// actionable messages.
func (w *Workflow) Push(remote, branch string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if remote == "" {
		remote = "origin"
	}
	if err := validateName("remote", remote); err != nil {
		return err
	}

	if branch == "" {
		current, err := w.CurrentBranch()
		if err != nil {
			return err
		}
		if current == "" {
			return mcperrors.New(mcperrors.KindValidation, "cannot push in detached HEAD state")
		}
		branch = current
	} else if err := validateName("branch", branch); err != nil {
		return err
	}

	if !w.HasRemote(remote) {
		return mcperrors.New(mcperrors.KindValidation, "remote %q does not exist", remote)
	}

	out, err := w.git("push", "-u", remote, branch)
	if err != nil {
		return mcperrors.Wrap(mcperrors.KindInternal, err, "%s", classifyPushFailure(out))
	}
	return nil
}

func classifyPushFailure(output string) string {
	switch {
	case strings.Contains(output, "rejected"):
		return "push rejected; remote has commits not present locally, pull or rebase first"
	case strings.Contains(output, "no upstream"):
		return "no upstream branch configured"
	case strings.Contains(output, "Authentication") || strings.Contains(output, "authentication") || strings.Contains(output, "Permission denied"):
		return "authentication failed pushing to remote"
	default:
		return "push failed: " + strings.TrimSpace(output)
	}
}

// FinishResult is the outcome of Finish, including the partial-success
// shape when the squash-merge succeeded but the optional push failed.
type FinishResult struct {
	SquashCommit    string
	Pushed          bool
	PushError       string
	BranchDeleted   bool
}

// Finish implements finish(branch?, deleteAfterMerge, pushToRemote,
// remote): current branch must be a feature branch on a clean tree;
// checks out the default branch, squash-merges the feature branch,
// commits, optionally pushes (push failure is non-fatal — partial
// success), and optionally deletes the feature branch.
func (w *Workflow) Finish(branch string, deleteAfterMerge, pushToRemote bool, remote string) (FinishResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if remote == "" {
		remote = "origin"
	}

	current, err := w.CurrentBranch()
	if err != nil {
		return FinishResult{}, err
	}
	if branch == "" {
		branch = current
	}
	if !IsFeatureBranch(branch) {
		return FinishResult{}, mcperrors.New(mcperrors.KindValidation, "branch %q is not a feature branch", branch)
	}
	if err := w.requireClean(); err != nil {
		return FinishResult{}, err
	}

	defaultBranch, err := w.DefaultBranch()
	if err != nil {
		return FinishResult{}, err
	}

	if _, err := w.git("checkout", defaultBranch); err != nil {
		return FinishResult{}, mcperrors.Wrap(mcperrors.KindFileSystem, err, "checking out %s", defaultBranch)
	}
	if _, err := w.git("merge", "--squash", branch); err != nil {
		return FinishResult{}, mcperrors.Wrap(mcperrors.KindFileSystem, err, "squash-merging %s", branch)
	}

	commitMsg := "Feature: " + derivedFeatureName(branch)
	if _, err := w.git("commit", "-m", commitMsg); err != nil {
		return FinishResult{}, mcperrors.Wrap(mcperrors.KindFileSystem, err, "committing squash merge")
	}

	sha, err := w.git("rev-parse", "HEAD")
	if err != nil {
		return FinishResult{}, mcperrors.Wrap(mcperrors.KindFileSystem, err, "resolving squash commit sha")
	}
	result := FinishResult{SquashCommit: strings.TrimSpace(sha)}

	if pushToRemote {
		if w.HasRemote(remote) {
			if out, pushErr := w.git("push", remote, defaultBranch); pushErr != nil {
				result.PushError = classifyPushFailure(out)
			} else {
				result.Pushed = true
			}
		} else {
			result.PushError = fmt.Sprintf("remote %q does not exist", remote)
		}
	}

	if deleteAfterMerge {
		if _, err := w.git("branch", "-D", branch); err != nil {
			gitLog.Printf("failed to delete feature branch %s after finish: %v", branch, err)
		} else {
			result.BranchDeleted = true
		}
	}

	return result, nil
}

// RollbackResult reports whether uncommitted changes were lost when
// force-deleting the branch.
type RollbackResult struct {
	UncommittedChangesLost bool
}

// Rollback implements rollback(branch): branch must be a feature branch
// and exist; if currently checked out, switches to the default branch
// first, then force-deletes it.
func (w *Workflow) Rollback(branch string) (RollbackResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !IsFeatureBranch(branch) {
		return RollbackResult{}, mcperrors.New(mcperrors.KindValidation, "branch %q is not a feature branch", branch)
	}
	if _, err := w.git("show-ref", "--verify", "--quiet", "refs/heads/"+branch); err != nil {
		return RollbackResult{}, mcperrors.New(mcperrors.KindValidation, "branch %q does not exist", branch)
	}

	var result RollbackResult
	current, err := w.CurrentBranch()
	if err != nil {
		return RollbackResult{}, err
	}
	if current == branch {
		clean, err := w.IsClean()
		if err != nil {
			return RollbackResult{}, err
		}
		result.UncommittedChangesLost = !clean

		defaultBranch, err := w.DefaultBranch()
		if err != nil {
			return RollbackResult{}, err
		}
		if _, err := w.git("checkout", "--force", defaultBranch); err != nil {
			return RollbackResult{}, mcperrors.Wrap(mcperrors.KindFileSystem, err, "checking out %s before rollback", defaultBranch)
		}
	}

	if _, err := w.git("branch", "-D", branch); err != nil {
		return result, mcperrors.Wrap(mcperrors.KindFileSystem, err, "deleting branch %s", branch)
	}
	return result, nil
}

// List returns every local branch name.
func (w *Workflow) List() ([]string, error) {
	out, err := w.git("branch", "--format=%(refname:short)")
	if err != nil {
		return nil, mcperrors.Wrap(mcperrors.KindFileSystem, err, "listing branches")
	}
	var branches []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

// Switch implements switch(branch): respects the clean-tree invariant.
func (w *Workflow) Switch(branch string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := validateName("branch", branch); err != nil {
		return err
	}
	if err := w.requireClean(); err != nil {
		return err
	}
	if _, err := w.git("checkout", branch); err != nil {
		return mcperrors.Wrap(mcperrors.KindFileSystem, err, "switching to branch %s", branch)
	}
	return nil
}

func derivedFeatureName(branch string) string {
	return strings.TrimPrefix(branch, constants.FeatureBranchPrefix)
}
