package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fanyicharllson/whichemail/model"
)

// UpdateGoldenEnv names the environment variable that rewrites golden files
// instead of comparing against them.
const UpdateGoldenEnv = "UPDATE_GOLDEN"

// LoadFixture reads a fixture file relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}
	return data
}

// LoadFixtureJSON reads a JSON fixture into dest.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadServices reads a JSON array of services.
func LoadServices(t *testing.T, path string) []model.Service {
	t.Helper()

	var out []model.Service
	LoadFixtureJSON(t, path, &out)
	return out
}

// WriteGolden writes data to a golden file, creating its directory.
func WriteGolden(t *testing.T, path string, data []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// CompareWithGolden fails t when actual differs from the golden file at
// path. With UPDATE_GOLDEN set the file is rewritten instead.
func CompareWithGolden(t *testing.T, path string, actual []byte) {
	t.Helper()

	if os.Getenv(UpdateGoldenEnv) != "" {
		WriteGolden(t, path, actual)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read golden file %s: %v (set %s=1 to create it)", path, err, UpdateGoldenEnv)
	}
	if string(actual) != string(expected) {
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, expected, actual)
	}
}

// FixturePath joins filename under testdata.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath joins filename under testdata/golden.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}
