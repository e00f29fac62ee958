package languages

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		filename string
		ext      string
		want     string
	}{
		{"main.go", "go", "go"},
		{"file.php", "php", "php"},
		{"lib.rs", "rs", "rust"},
		{"App.TSX", "TSX", "react"},
		{"Dockerfile", "", "docker"},
		{"go.mod", "mod", "go"},
		{"docker-compose.prod.yml", "yml", "docker"},
		{"README.md", "md", "markdown"},
		{"readme", "", "markdown"},
		{".env.local", "local", "env"},
		{"tsconfig.build.json", "json", "typescript"},
		{"notes.unknownext", "unknownext", Default},
		{"LICENSE-MIT", "", Default},
		{"", "", Default},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := Classify(tt.filename, tt.ext); got != tt.want {
				t.Errorf("Classify(%q, %q) = %q, want %q", tt.filename, tt.ext, got, tt.want)
			}
		})
	}
}

func TestEmbeddedTableParses(t *testing.T) {
	tbl, err := parseTable(tableJSON)
	if err != nil {
		t.Fatalf("parseTable: %v", err)
	}
	if len(tbl.filenames) == 0 || len(tbl.patterns) == 0 || len(tbl.extensions) == 0 {
		t.Errorf("table sections empty: %d filenames, %d patterns, %d extensions",
			len(tbl.filenames), len(tbl.patterns), len(tbl.extensions))
	}
	for ext := range tbl.extensions {
		if ext == "" || ext[0] != '.' {
			t.Errorf("extension key %q must start with a dot", ext)
		}
	}
}

func TestParseTable_BadPattern(t *testing.T) {
	if _, err := parseTable([]byte(`{"patterns":[{"pattern":"(","language":"x"}]}`)); err == nil {
		t.Error("expected error for invalid regex")
	}
}
