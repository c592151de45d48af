// Package compose inspects the compose file with the compose-go loader.
//
// Inspection is advisory: the check command and startup diagnostics use it,
// but deployments never depend on it. The compose binary stays the single
// authority on what actually runs.
package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
)

// Summary describes a successfully loaded compose file.
type Summary struct {
	Path     string   `json:"path" yaml:"path"`
	Project  string   `json:"project" yaml:"project"`
	Services []string `json:"services" yaml:"services"`
}

// Inspect loads the compose file at path and returns the project name and
// service names. The process environment is used for variable
// interpolation, the same environment the compose binary sees at deploy
// time.
func Inspect(ctx context.Context, dir, path string) (*Summary, error) {
	name := loader.NormalizeProjectName(filepath.Base(dir))
	if name == "" {
		name = "default"
	}

	details := types.ConfigDetails{
		WorkingDir: dir,
		ConfigFiles: []types.ConfigFile{
			{Filename: path},
		},
		Environment: types.NewMapping(os.Environ()),
	}

	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName(name, false)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load compose file %s: %w", path, err)
	}

	return &Summary{
		Path:     path,
		Project:  project.Name,
		Services: project.ServiceNames(),
	}, nil
}
