// Package hierarchy derives folder structure from flat record paths.
//
// Nothing here builds a tree. Every call looks only at the paths it is
// given and returns fresh values, so callers can recompute on each buffer
// change without invalidation bookkeeping.
package hierarchy

import (
	"sort"
	"strings"

	"github.com/fruitsalade/folderview/internal/models"
)

const ellipsis = "/.../"

// segments splits a path into its non-empty components after trimming
// surrounding slashes.
func segments(path string) []string {
	var segs []string
	for _, s := range strings.Split(strings.Trim(path, "/"), "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// CommonRoot returns the longest run of leading segments shared by every
// path, rendered as "/a/b/". It returns "" for empty input or when the paths
// share nothing.
func CommonRoot(paths []string) string {
	if len(paths) == 0 {
		return ""
	}

	common := segments(paths[0])
	for _, p := range paths[1:] {
		if len(common) == 0 {
			break
		}
		segs := segments(p)
		n := len(common)
		if len(segs) < n {
			n = len(segs)
		}
		i := 0
		for i < n && common[i] == segs[i] {
			i++
		}
		common = common[:i]
	}

	if len(common) == 0 {
		return ""
	}
	return "/" + strings.Join(common, "/") + "/"
}

// Normalize returns path with exactly one trailing slash. An empty path
// normalizes to "/".
func Normalize(path string) string {
	return strings.TrimRight(path, "/") + "/"
}

// Trim returns path without trailing slashes.
func Trim(path string) string {
	return strings.TrimRight(path, "/")
}

// Under reports whether folder lies at or beneath root. Both arguments are
// compared in normalized form, so "/a/b" and "/a/b/" are equivalent.
func Under(folder, root string) bool {
	return strings.HasPrefix(Normalize(folder), Normalize(root))
}

// GroupByFirstLevel groups records by the first path segment below root.
// Records outside root are dropped. Records sitting exactly at root are
// grouped under the empty key.
func GroupByFirstLevel(records []models.Record, root string) map[string][]models.Record {
	base := Normalize(root)
	groups := make(map[string][]models.Record)
	for _, r := range records {
		p := Normalize(r.FolderPath)
		if !strings.HasPrefix(p, base) {
			continue
		}
		rest := p[len(base):]
		key := rest
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			key = rest[:i]
		}
		groups[key] = append(groups[key], r)
	}
	return groups
}

// Aggregate computes the common root of all records and the first-level
// subfolders beneath it. Each label's RelativePath collapses single-child
// chains: a group whose records all live under "/r/x/y/" is labelled "x/y/".
// SubFolders are sorted by RelativePath.
func Aggregate(records []models.Record) models.HierarchyResult {
	paths := make([]string, len(records))
	for i, r := range records {
		paths[i] = r.FolderPath
	}

	root := CommonRoot(paths)
	base := Normalize(root)
	result := models.HierarchyResult{RootFolder: root}

	for key, group := range GroupByFirstLevel(records, root) {
		if key == "" {
			// Records directly in root are the current folder, not a subfolder.
			continue
		}
		groupPaths := make([]string, len(group))
		for i, r := range group {
			groupPaths[i] = r.FolderPath
		}
		full := CommonRoot(groupPaths)
		rel := strings.TrimPrefix(full, base)
		result.SubFolders = append(result.SubFolders, models.FolderLabel{
			RelativePath: rel,
			DisplayName:  Shorten(rel),
			FullPath:     full,
			Count:        len(group),
		})
	}

	sort.Slice(result.SubFolders, func(i, j int) bool {
		return result.SubFolders[i].RelativePath < result.SubFolders[j].RelativePath
	})
	return result
}

// Shorten renders a relative folder path for display. Paths deeper than two
// segments keep only the first and last: "x/y/z/w/" becomes "x/.../w".
func Shorten(relativePath string) string {
	segs := segments(relativePath)
	if len(segs) <= 2 {
		return strings.Join(segs, "/")
	}
	return segs[0] + ellipsis + segs[len(segs)-1]
}

// DirectlyIn returns the records whose folder is exactly folder. Records in
// deeper subfolders are excluded.
func DirectlyIn(records []models.Record, folder string) []models.Record {
	want := Trim(folder)
	var out []models.Record
	for _, r := range records {
		if Trim(r.FolderPath) == want {
			out = append(out, r)
		}
	}
	return out
}
