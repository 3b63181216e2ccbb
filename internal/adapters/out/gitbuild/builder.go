// Package gitbuild implements the source build pipeline: clone a repository
// into an ephemeral workspace, build an image from it, and destroy the
// workspace whatever the outcome.
package gitbuild

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/ferplaru/ai-playground/internal/boundaries/out"
	"github.com/ferplaru/ai-playground/internal/domain"
)

const cloneTimeout = 300 * time.Second

// cloneFunc clones repoURL into dir. Swappable for tests.
type cloneFunc func(ctx context.Context, repoURL, dir string) error

// Builder builds images from source repositories through the container runtime.
type Builder struct {
	runtime  out.ContainerRuntime
	buildDir string
	clone    cloneFunc
}

// Option configures a Builder.
type Option func(*Builder)

// WithCloneFunc substitutes the repository cloner (for testing).
func WithCloneFunc(fn cloneFunc) Option {
	return func(b *Builder) { b.clone = fn }
}

// NewBuilder creates a builder that places its ephemeral workspaces under buildDir.
func NewBuilder(runtime out.ContainerRuntime, buildDir string, opts ...Option) *Builder {
	b := &Builder{
		runtime:  runtime,
		buildDir: buildDir,
		clone:    gitClone,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ImageTag returns the deterministic tag for an application image.
func ImageTag(appName string) string {
	return fmt.Sprintf("playground/%s:latest", strings.ToLower(appName))
}

// BuildFromSource clones cloneURL and builds an image tagged from appName.
// The workspace is removed on every exit path: success, clone failure, and
// build failure.
func (b *Builder) BuildFromSource(ctx context.Context, appName, cloneURL string) (string, error) {
	workspace := filepath.Join(b.buildDir, fmt.Sprintf("%s-%s", appName, uuid.NewString()))
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", fmt.Errorf("failed to create build workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			log.Error("failed to remove build workspace", "workspace", workspace, "error", err)
		}
	}()

	log.Info("cloning repository", "app", appName, "url", cloneURL)
	cloneCtx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()
	if err := b.clone(cloneCtx, cloneURL, workspace); err != nil {
		return "", &domain.BuildError{Stage: domain.BuildStageClone, Detail: err.Error(), Err: err}
	}

	tag := ImageTag(appName)
	log.Info("building image", "app", appName, "tag", tag)
	if err := b.runtime.Build(ctx, workspace, tag); err != nil {
		return "", &domain.BuildError{Stage: domain.BuildStageBuild, Detail: err.Error(), Err: err}
	}

	return tag, nil
}

func gitClone(ctx context.Context, repoURL, dir string) error {
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", repoURL, dir)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("clone timed out after %s", cloneTimeout)
		}
		return fmt.Errorf("git clone failed: %s", strings.TrimSpace(stderr.String()))
	}
	return nil
}
