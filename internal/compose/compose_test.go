package compose

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestInspect(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeFile(t, tmpDir, "docker-compose.prod.yml", `
services:
  app:
    image: nginx:1.27
  db:
    image: postgres:16
`)

	summary, err := Inspect(context.Background(), tmpDir, path)
	require.NoError(t, err)

	assert.Equal(t, path, summary.Path)
	assert.NotEmpty(t, summary.Project)
	assert.Equal(t, []string{"app", "db"}, summary.Services)
}

func TestInspectInterpolatesEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeFile(t, tmpDir, "compose.yml", `
services:
  app:
    image: nginx:${NGINX_TAG:-latest}
`)

	t.Setenv("NGINX_TAG", "1.27")

	summary, err := Inspect(context.Background(), tmpDir, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"app"}, summary.Services)
}

func TestInspectMissingFile(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := Inspect(context.Background(), tmpDir, filepath.Join(tmpDir, "nope.yml"))
	assert.Error(t, err)
}

func TestInspectMalformedFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeFile(t, tmpDir, "broken.yml", "services: [not, a, mapping\n")

	_, err := Inspect(context.Background(), tmpDir, path)
	assert.Error(t, err)
}
