// Package models contains the data types shared by every browsing component.
package models

// Record is one image as yielded by a record source.
// FolderPath is an absolute, "/"-rooted directory; it may or may not carry a
// trailing slash.
type Record struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	FolderPath  string `json:"folder_path"`
}

// FolderLabel is a first-level subfolder computed from a record buffer.
type FolderLabel struct {
	RelativePath string `json:"relative_path"`
	DisplayName  string `json:"display_name"`
	FullPath     string `json:"full_path"`
	Count        int    `json:"count"`
}

// HierarchyResult is the output of one aggregation pass.
type HierarchyResult struct {
	RootFolder string        `json:"root_folder"`
	SubFolders []FolderLabel `json:"sub_folders"`
}

// NavigationState is a snapshot of the current path and the descent history.
type NavigationState struct {
	CurrentPath string   `json:"current_path"`
	PathHistory []string `json:"path_history"`
}
