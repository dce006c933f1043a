package hierarchy

import (
	"path"
	"reflect"
	"testing"

	"github.com/fruitsalade/folderview/internal/models"
)

func rec(id, folder string) models.Record {
	return models.Record{ID: id, DisplayName: id, FolderPath: folder}
}

// fromFile builds a record the way a source does: the folder is the parent
// of the image path.
func fromFile(p string) models.Record {
	return models.Record{ID: p, DisplayName: path.Base(p), FolderPath: path.Dir(p)}
}

func TestCommonRoot(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"empty", nil, ""},
		{"siblings", []string{"/a/b/", "/a/c/"}, "/a/"},
		{"single", []string{"/a/b/"}, "/a/b/"},
		{"no trailing slash", []string{"/a/b", "/a/b/c"}, "/a/b/"},
		{"disjoint", []string{"/x/y", "/z"}, ""},
		{"unsorted", []string{"/a/b/c/d", "/a/b", "/a/b/c"}, "/a/b/"},
		{"stops at first mismatch", []string{"/a/x/c", "/a/y/c"}, "/a/"},
		{"root only", []string{"/", "/a"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CommonRoot(tt.paths); got != tt.want {
				t.Errorf("CommonRoot(%q) = %q, want %q", tt.paths, got, tt.want)
			}
		})
	}
}

func TestShorten(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"/x/", "x"},
		{"/x/y/", "x/y"},
		{"x/y/z/", "x/.../z"},
		{"/x/y/z/w/", "x/.../w"},
		{"x//y", "x/y"},
	}

	for _, tt := range tests {
		if got := Shorten(tt.in); got != tt.want {
			t.Errorf("Shorten(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGroupByFirstLevelExcludesOutsideRoot(t *testing.T) {
	records := []models.Record{
		rec("1", "/a/b"),
		rec("2", "/x/y"),
		rec("3", "/a/c/d"),
	}

	groups := GroupByFirstLevel(records, "/a")

	if _, ok := groups["x"]; ok {
		t.Error("record outside root was grouped")
	}
	if len(groups["b"]) != 1 || groups["b"][0].ID != "1" {
		t.Errorf("group b = %v", groups["b"])
	}
	if len(groups["c"]) != 1 || groups["c"][0].ID != "3" {
		t.Errorf("group c = %v", groups["c"])
	}
}

func TestGroupByFirstLevelRootRecords(t *testing.T) {
	records := []models.Record{
		rec("1", "/a/b"),
		rec("2", "/a/b/"),
		rec("3", "/a/b/c"),
	}

	groups := GroupByFirstLevel(records, "/a/b/")

	if len(groups[""]) != 2 {
		t.Fatalf("expected 2 records at root, got %d", len(groups[""]))
	}
	if len(groups["c"]) != 1 {
		t.Errorf("expected 1 record in c, got %d", len(groups["c"]))
	}
}

func TestAggregateScenario(t *testing.T) {
	records := []models.Record{
		fromFile("/r/x/1.jpg"),
		fromFile("/r/x/2.jpg"),
		fromFile("/r/y/3.jpg"),
	}

	got := Aggregate(records)

	if got.RootFolder != "/r/" {
		t.Fatalf("RootFolder = %q, want /r/", got.RootFolder)
	}
	want := []models.FolderLabel{
		{RelativePath: "x/", DisplayName: "x", FullPath: "/r/x/", Count: 2},
		{RelativePath: "y/", DisplayName: "y", FullPath: "/r/y/", Count: 1},
	}
	if !reflect.DeepEqual(got.SubFolders, want) {
		t.Errorf("SubFolders = %+v, want %+v", got.SubFolders, want)
	}
}

func TestAggregateCollapsesChains(t *testing.T) {
	records := []models.Record{
		rec("1", "/r/a"),
		rec("2", "/r/x/y/z/w"),
		rec("3", "/r/x/y/z/w/v"),
	}

	got := Aggregate(records)

	if got.RootFolder != "/r/" {
		t.Fatalf("RootFolder = %q", got.RootFolder)
	}
	if len(got.SubFolders) != 2 {
		t.Fatalf("expected 2 subfolders, got %+v", got.SubFolders)
	}
	deep := got.SubFolders[1]
	if deep.RelativePath != "x/y/z/w/" || deep.DisplayName != "x/.../w" {
		t.Errorf("deep label = %+v", deep)
	}
}

func TestAggregateSkipsRootGroup(t *testing.T) {
	records := []models.Record{
		rec("1", "/r"),
		rec("2", "/r/x"),
	}

	got := Aggregate(records)

	if got.RootFolder != "/r/" {
		t.Fatalf("RootFolder = %q", got.RootFolder)
	}
	if len(got.SubFolders) != 1 || got.SubFolders[0].RelativePath != "x/" {
		t.Errorf("SubFolders = %+v", got.SubFolders)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	records := []models.Record{
		rec("1", "/m/b"), rec("2", "/m/a"), rec("3", "/m/c/d"), rec("4", "/m/a/e"),
	}

	first := Aggregate(records)
	second := Aggregate(records)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Aggregate not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	if got.RootFolder != "" || len(got.SubFolders) != 0 {
		t.Errorf("Aggregate(nil) = %+v", got)
	}
}

func TestDirectlyInExactMatch(t *testing.T) {
	records := []models.Record{
		rec("top", "/a/"),
		rec("deep", "/a/b/"),
		rec("bare", "/a"),
	}

	got := DirectlyIn(records, "/a/")

	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %v", got)
	}
	for _, r := range got {
		if r.ID == "deep" {
			t.Error("record in subfolder leaked into parent view")
		}
	}
}

func TestUnder(t *testing.T) {
	tests := []struct {
		folder, root string
		want         bool
	}{
		{"/a/b", "/a", true},
		{"/a/b/", "/a/b", true},
		{"/ab", "/a", false},
		{"/x", "", true},
	}
	for _, tt := range tests {
		if got := Under(tt.folder, tt.root); got != tt.want {
			t.Errorf("Under(%q, %q) = %v, want %v", tt.folder, tt.root, got, tt.want)
		}
	}
}
