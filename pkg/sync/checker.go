// Package sync implements SyncChecker (C6): comparing the local mirror
// against remote content by normalized SHA-256 hash, classifying each
// file, and validating CommonJS critical-file ordering as a secondary,
// warning-only responsibility.
package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/mcpgas/mcp-gas/pkg/constants"
	"github.com/mcpgas/mcp-gas/pkg/gasmodel"
)

// systemFiles are excluded from drift classification entirely: the shim,
// both HTML templates, the manifest, and anything under common-js/.
var systemFiles = map[string]bool{
	constants.ShimFileName:        true,
	constants.ErrorTemplateName:   true,
	constants.SuccessTemplateName: true,
	constants.ManifestName:        true,
}

func isSystemFile(name string) bool {
	if systemFiles[name] {
		return true
	}
	return strings.HasPrefix(name, "common-js/")
}

// criticalOrder is the fixed set of CommonJS bootstrap files that must
// appear in this relative order in the project's remote file list,
// because GAS loads SERVER_JS files in alphabetical order.
var criticalOrder = []string{"common-js/00_polyfills", "common-js/01_require", "common-js/02_module"}

// normalize applies the LF-only, no-added-trailing-newline normalization
// rule before hashing.
func normalize(content string) string {
	return strings.ReplaceAll(content, "\r\n", "\n")
}

func hash(content string) string {
	sum := sha256.Sum256([]byte(normalize(content)))
	return hex.EncodeToString(sum[:])
}

// Checker is the SyncChecker implementation.
type Checker struct {
	maxFilesWithContent int
	diffMaxLines        int
	previewMaxChars     int
}

// New constructs a Checker using the fixed drift-report size limits from
// spec §4.6 (5 files with content, 200-line diffs, 2000-char previews).
func New() *Checker {
	return &Checker{
		maxFilesWithContent: constants.SyncDriftMaxFilesWithContent,
		diffMaxLines:        constants.SyncDriftDiffMaxLines,
		previewMaxChars:     constants.SyncDriftPreviewMaxChars,
	}
}

// Compare classifies every local and remote file and produces a
// DriftReport. Only local_stale blocks execution (HasBlockingDrift).
func (c *Checker) Compare(local []gasmodel.LocalFile, remote []gasmodel.RemoteFile) gasmodel.DriftReport {
	remoteByName := make(map[string]gasmodel.RemoteFile, len(remote))
	for _, r := range remote {
		remoteByName[r.Name] = r
	}
	localByName := make(map[string]gasmodel.LocalFile, len(local))
	for _, l := range local {
		if name, _, ok := gasmodel.ToGasName(l.RelativePath); ok {
			localByName[name] = l
		}
	}

	var names []string
	seen := map[string]bool{}
	for name := range remoteByName {
		if !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	for name := range localByName {
		if !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
	}
	sort.Strings(names)

	report := gasmodel.DriftReport{}
	contentIncluded := 0

	for _, name := range names {
		if isSystemFile(name) {
			continue
		}
		l, hasLocal := localByName[name]
		r, hasRemote := remoteByName[name]

		var class gasmodel.DriftClass
		switch {
		case hasLocal && hasRemote && hash(l.Content) == hash(r.Source):
			class = gasmodel.DriftInSync
		case hasLocal && hasRemote:
			class = gasmodel.DriftLocalStale
		case hasRemote:
			class = gasmodel.DriftRemoteOnly
		default:
			class = gasmodel.DriftLocalOnly
		}

		drift := gasmodel.FileDrift{Path: name, Class: class}
		if (class == gasmodel.DriftLocalStale || class == gasmodel.DriftRemoteOnly) && contentIncluded < c.maxFilesWithContent {
			drift.LocalContent, drift.Truncated = c.clip(l.Content)
			drift.RemoteContent, _ = c.clip(r.Source)
			contentIncluded++
		}
		report.Files = append(report.Files, drift)
	}

	report.Blocking = report.HasBlockingDrift()
	report.OrderWarnings = c.checkOrder(remote)
	return report
}

func (c *Checker) clip(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	truncated := false
	if len(lines) > c.diffMaxLines {
		lines = lines[:c.diffMaxLines]
		truncated = true
	}
	out := strings.Join(lines, "\n")
	if len(out) > c.previewMaxChars {
		out = out[:c.previewMaxChars]
		truncated = true
	}
	return out, truncated
}

// checkOrder validates that criticalOrder entries present in remote
// appear in the expected relative order. Violations are warnings only.
func (c *Checker) checkOrder(remote []gasmodel.RemoteFile) []string {
	positions := make(map[string]int)
	for i, r := range remote {
		positions[r.Name] = i
	}

	var present []string
	for _, name := range criticalOrder {
		if _, ok := positions[name]; ok {
			present = append(present, name)
		}
	}

	var warnings []string
	for i := 1; i < len(present); i++ {
		if positions[present[i-1]] > positions[present[i]] {
			warnings = append(warnings, "module order violation: "+present[i-1]+" must load before "+present[i])
		}
	}
	return warnings
}
