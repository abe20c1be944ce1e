package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	storageDir string
	server     *httptest.Server
	hitsMu     sync.Mutex
	hits       map[string]int
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	env := &cliTestEnv{
		baseDir:    base,
		storageDir: filepath.Join(base, "archive"),
		hits:       map[string]int{},
	}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.hitsMu.Lock()
		env.hits[r.URL.Path]++
		env.hitsMu.Unlock()

		switch {
		case r.URL.Path == "/post/p123/media":
			fmt.Fprintf(w, `[{"url":%q,"content_type":"image/jpeg"}]`, env.server.URL+"/files/one")
		case strings.HasPrefix(r.URL.Path, "/post/") || strings.HasPrefix(r.URL.Path, "/clip/"):
			fmt.Fprint(w, `{"author":"someone"}`)
		default:
			fmt.Fprint(w, "binary-payload")
		}
	}))
	t.Cleanup(env.server.Close)

	env.configPath = filepath.Join(homeDir, ".config", "devourer", "config.toml")
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, env.configPath, env)

	return env
}

func (e *cliTestEnv) hitCount(path string) int {
	e.hitsMu.Lock()
	defer e.hitsMu.Unlock()
	return e.hits[path]
}

func writeTestConfig(t *testing.T, path string, env *cliTestEnv) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
storage_dir = %q
log_dir = %q

[provider]
base_url = %q
timeout_seconds = 5

[download]
parallelism = 2
timeout_seconds = 5

[ratelimit]
post_min_seconds = 0
post_max_seconds = 0
clip_min_seconds = 0
clip_max_seconds = 0

[tools]
vsub_binary = "vsub"

[logging]
format = "console"
level = "error"
`,
		env.storageDir,
		filepath.Join(env.baseDir, "logs"),
		env.server.URL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeLinksFile(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "links.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write links file: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
