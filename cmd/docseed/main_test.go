package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/johnwards/docseed/internal/config"
)

const userModel = `
name: User
fields:
  - path: parent
    type: ObjectId
    ref: User
  - path: guardian
    type: ObjectId
    ref: User
  - path: username
    type: String
  - path: email
    type: String
  - path: children
    type: "[ObjectId]"
    ref: User
  - path: kids
    type: array
    items:
      type: ObjectId
      ref: User
`

const petModel = `
model "Pet" {
  field "name" {
    type = "String"
  }
  field "owner" {
    type = "ObjectId"
    ref  = "User"
  }
}
`

const userSeed = `
- parent:
    username: Good Joe
    email: goodjoe@seed.test
  guardian:
    username: Good Joe
    email: goodjoe@seed.test
  username: owner
  email: owner@seed.test
  children:
    - username: c1
      email: c1@seed.test
    - username: c2
      email: c2@seed.test
  kids:
    - username: k1
      email: k1@seed.test
- username: gi chan
  email: gichan@seed.test
- username: gi chan
  email: gichan@seed.test
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "models", "user.yaml"), userModel)
	writeFile(t, filepath.Join(dir, "models", "pet.hcl"), petModel)
	writeFile(t, filepath.Join(dir, "seeds", "test", "UsersSeed.yaml"), userSeed)
	writeFile(t, filepath.Join(dir, "seeds", "test", "PetSeed.json"), `[{"name": "rex", "owner": {"username": "gi chan", "email": "gichan@seed.test"}}]`)

	return config.Config{
		DBPath:      filepath.Join(dir, "docseed.db"),
		ModelsPath:  filepath.Join(dir, "models"),
		SeedsPath:   filepath.Join(dir, "seeds"),
		Environment: "test",
		Suffix:      "Seed",
		LogLevel:    "error",
		LogFormat:   "text",
	}
}

func execute(t *testing.T, cfg config.Config, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(cfg)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("docseed %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd(config.Config{})
	if cmd.Use != "docseed" {
		t.Errorf("expected Use 'docseed', got %q", cmd.Use)
	}
	for _, name := range []string{"seed", "graph", "models", "runs"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestSeedCommand(t *testing.T) {
	cfg := testConfig(t)

	out := execute(t, cfg, "seed")
	if !strings.Contains(out, "User") || !strings.Contains(out, "Pet") {
		t.Fatalf("seed output missing models:\n%s", out)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two models, got:\n%s", out)
	}
	// Pet declares one reference and User four, so Pet scores higher.
	if !strings.HasPrefix(lines[1], "Pet") {
		t.Errorf("expected Pet to be seeded first, got %q", lines[1])
	}

	runs := execute(t, cfg, "runs")
	if !strings.Contains(runs, "COMPLETE") {
		t.Errorf("expected a complete run, got:\n%s", runs)
	}

	stored := execute(t, cfg, "models", "--stored")
	if !strings.Contains(stored, "kids") || !strings.Contains(stored, "owner") {
		t.Errorf("stored models missing fields:\n%s", stored)
	}
}

func TestSeedCommandDisabled(t *testing.T) {
	cfg := testConfig(t)

	out := execute(t, cfg, "seed", "--disabled")
	if strings.Contains(out, "User") {
		t.Errorf("disabled seed should not seed models:\n%s", out)
	}
}

func TestGraphCommand(t *testing.T) {
	cfg := testConfig(t)

	out := execute(t, cfg, "graph")
	if !strings.Contains(out, "owner->User") {
		t.Errorf("expected Pet parent edge, got:\n%s", out)
	}
	if !strings.Contains(out, "996") {
		t.Errorf("expected User score 996, got:\n%s", out)
	}

	js := execute(t, cfg, "graph", "--json")
	if !strings.Contains(js, `"selfChildRefs"`) {
		t.Errorf("expected JSON output, got:\n%s", js)
	}
}
