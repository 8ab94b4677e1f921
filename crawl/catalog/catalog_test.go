package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl"
)

func TestSources_Wellformed(t *testing.T) {
	// WHAT: Every definition names itself, has an output table, at least
	// one listing root whose template can actually paginate, and stamps
	// its Source column.
	// WHY: A malformed definition fails silently at crawl time.
	seenNames := map[string]bool{}
	seenFiles := map[string]bool{}

	for _, src := range Sources() {
		if src.Name == "" {
			t.Fatal("source with empty name")
		}
		t.Run(src.Name, func(t *testing.T) {
			if seenNames[src.Name] {
				t.Errorf("duplicate source name %q", src.Name)
			}
			seenNames[src.Name] = true

			if src.OutputFile == "" || seenFiles[src.OutputFile] {
				t.Errorf("output file %q missing or duplicated", src.OutputFile)
			}
			seenFiles[src.OutputFile] = true

			if len(src.Columns) == 0 {
				t.Error("no output columns")
			}
			if len(src.Listings) == 0 {
				t.Error("no listing roots")
			}
			for _, root := range src.Listings {
				multiPage := strings.Contains(root.URLTemplate, "{page}")
				if !multiPage && src.Paginate.Default > 1 {
					t.Errorf("template %q cannot paginate but default is %d",
						root.URLTemplate, src.Paginate.Default)
				}
				if page2 := root.PageURL(root.StartPage + 1); multiPage && strings.Contains(page2, "{page}") {
					t.Errorf("template %q does not expand", root.URLTemplate)
				}
			}
			if src.Constants["Source"] == "" {
				t.Error("Source column constant not set")
			}
			for col := range src.Constants {
				if !hasColumn(src.Columns, col) {
					t.Errorf("constant %q has no output column", col)
				}
			}
			if src.URLColumn != "" && !hasColumn(src.Columns, src.URLColumn) {
				t.Errorf("url column %q not in output columns", src.URLColumn)
			}
		})
	}
}

func TestSources_FieldsMapToColumns(t *testing.T) {
	// WHAT: Every extracted field name lands in the source's CSV header.
	// WHY: A field without a column is silently dropped at write time;
	// only the intermediate date fields are exempt.
	for _, src := range Sources() {
		t.Run(src.Name, func(t *testing.T) {
			check := func(name string) {
				if name == src.Schema.YearFrom {
					return
				}
				if !hasColumn(src.Columns, name) {
					t.Errorf("field %q has no output column", name)
				}
			}
			for _, f := range src.Schema.Fields {
				check(f.Name)
			}
			for _, lb := range src.Schema.Labels {
				for _, field := range lb.Vocabulary {
					check(field)
				}
			}
			for name := range src.Schema.Embedded {
				check(name)
			}
			for name := range src.Listing.Fields {
				check(name)
			}
		})
	}
}

func TestByName(t *testing.T) {
	// WHAT: Known names resolve; unknown names return the sentinel.
	src, err := ByName("IEA")
	if err != nil || src.OutputFile != "IEA_all_policy.csv" {
		t.Errorf("ByName(IEA): %v, %+v", err, src)
	}
	if _, err := ByName("NOPE"); !errors.Is(err, crawl.ErrUnknownSource) {
		t.Errorf("unknown source: got %v", err)
	}
}

func TestMEEPRC_CategoryRoots(t *testing.T) {
	// WHAT: Each ministry category becomes one root with an unnumbered
	// first page.
	src := MEEPRC()
	if len(src.Listings) != 15 {
		t.Fatalf("roots: got %d, want 15", len(src.Listings))
	}
	first := src.Listings[0]
	if got := first.PageURL(0); !strings.HasSuffix(got, "/168/index_6700.html") {
		t.Errorf("first page: got %s", got)
	}
	if got := first.PageURL(3); !strings.HasSuffix(got, "/168/index_6700_3.html") {
		t.Errorf("page 3: got %s", got)
	}
}

func hasColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}
