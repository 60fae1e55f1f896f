package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func prepareReport(t *testing.T) *Report {
	t.Helper()
	conf := &ReporterConfig{Destination: filepath.Join(t.TempDir(), "report.zip")}
	rpt, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	return rpt
}

func readArchive(t *testing.T, name string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(name)
	if err != nil {
		t.Fatalf("opening report archive: %v", err)
	}
	defer zr.Close()

	content := make(map[string]string)
	for _, f := range zr.File {
		r, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatal(err)
		}
		content[f.Name] = string(data)
	}
	return content
}

func TestReportNilIsInert(t *testing.T) {
	var rpt *Report
	rpt.Store("a", "b")
	rpt.StoreData("c", []byte("d"))
	if rpt.Name() != "" {
		t.Error("nil report has a name")
	}
	if err := rpt.Close(); err != nil {
		t.Errorf("Close() on nil report error = %v", err)
	}
}

func TestReportStoresDataAndFiles(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "doc.html")
	if err := os.WriteFile(srcPath, []byte("<p>hello</p>"), 0644); err != nil {
		t.Fatal(err)
	}

	rpt := prepareReport(t)
	rpt.StoreData("groups.json", []byte(`[{"id":0}]`))
	rpt.Store("document.html", srcPath)
	rpt.Store("missing.log", filepath.Join(t.TempDir(), "never-created.log"))

	name := rpt.Name()
	if err := rpt.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content := readArchive(t, name)
	if _, ok := content["MANIFEST"]; !ok {
		t.Fatal("archive has no MANIFEST")
	}
	if content["groups.json"] != `[{"id":0}]` {
		t.Errorf("groups.json = %q", content["groups.json"])
	}
	if content["document.html"] != "<p>hello</p>" {
		t.Errorf("document.html = %q", content["document.html"])
	}
	if _, ok := content["missing.log"]; ok {
		t.Error("absent source file still ended up in the archive")
	}
	if !strings.Contains(content["MANIFEST"], "missing.log") {
		t.Error("manifest does not mention stored name")
	}
}

func TestReportVersionsRepeatedData(t *testing.T) {
	rpt := prepareReport(t)
	rpt.StoreData("groups.json", []byte("one"))
	rpt.StoreData("groups.json", []byte("two"))

	name := rpt.Name()
	if err := rpt.Close(); err != nil {
		t.Fatal(err)
	}

	content := readArchive(t, name)
	delete(content, "MANIFEST")
	if len(content) != 2 {
		t.Fatalf("expected 2 versioned entries, got %v", content)
	}
	if content["groups.json"] != "one" {
		t.Errorf("original entry = %q, want one", content["groups.json"])
	}
}
