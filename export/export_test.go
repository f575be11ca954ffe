package export

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fanyicharllson/whichemail/model"
	"github.com/fanyicharllson/whichemail/pkg/testsupport"
	"github.com/goliatone/go-errors"
)

var exportTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func loadServices(t *testing.T) []model.Service {
	t.Helper()
	return testsupport.LoadServices(t, testsupport.FixturePath("services.json"))
}

func TestJSON_Golden(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, loadServices(t), exportTime); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	testsupport.CompareWithGolden(t, testsupport.GoldenPath("backup.json"), buf.Bytes())
}

func TestJSON_NeverIncludesIdentifiersOrFlagsOutsideBackup(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, loadServices(t), exportTime); err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, raw := range doc["services"].([]any) {
		entry := raw.(map[string]any)
		for _, key := range []string{"id", "password", "isFavorite", "updatedAt"} {
			if _, ok := entry[key]; ok {
				t.Errorf("backup entry carries %q: %v", key, entry)
			}
		}
	}
}

func TestJSON_EmptyList(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, nil, exportTime); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"services": []`) || !strings.Contains(buf.String(), `"totalServices": 0`) {
		t.Errorf("unexpected empty backup:\n%s", buf.String())
	}
}

func TestCSV_Golden(t *testing.T) {
	var buf bytes.Buffer
	if err := CSV(&buf, loadServices(t)); err != nil {
		t.Fatalf("CSV: %v", err)
	}
	testsupport.CompareWithGolden(t, testsupport.GoldenPath("export.csv"), buf.Bytes())
}

func TestCSV_UnparseableDateLeftBlank(t *testing.T) {
	var buf bytes.Buffer
	list := []model.Service{{ServiceName: "X", Email: "x@x.com", CreatedAt: "yesterday"}}
	if err := CSV(&buf, list); err != nil {
		t.Fatalf("CSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[1] != "X,x@x.com,N/A,N/A,No," {
		t.Errorf("record = %q", lines[1])
	}
}

func TestText_Golden(t *testing.T) {
	var buf bytes.Buffer
	if err := Text(&buf, loadServices(t), exportTime); err != nil {
		t.Fatalf("Text: %v", err)
	}
	testsupport.CompareWithGolden(t, testsupport.GoldenPath("summary.txt"), buf.Bytes())
}

func TestFileName(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatJSON, "whichemail_backup_1748779200000.json"},
		{FormatCSV, "whichemail_export_1748779200000.csv"},
		{FormatText, "whichemail_export_1748779200000.txt"},
	}
	for _, tt := range tests {
		got, err := FileName(tt.format, exportTime)
		if err != nil || got != tt.want {
			t.Errorf("FileName(%q) = %q, %v; want %q", tt.format, got, err, tt.want)
		}
	}

	if _, err := FileName("pdf", exportTime); !errors.IsCategory(err, errors.CategoryBadInput) {
		t.Errorf("expected bad input error, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrShortWrite }

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, loadServices(t), exportTime); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Service Name,Email") {
		t.Errorf("unexpected output %q", buf.String())
	}

	if err := Write(&buf, "pdf", nil, exportTime); err == nil {
		t.Error("expected unsupported format error")
	}
	if err := Write(failingWriter{}, FormatText, nil, exportTime); !errors.IsCategory(err, errors.CategoryInternal) {
		t.Errorf("expected write failure, got %v", err)
	}
}
