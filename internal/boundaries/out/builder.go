package out

import "context"

// ImageBuilder produces a runnable image from a source repository when a
// publishable image is unavailable. Implementations must destroy their
// workspace on every exit path.
type ImageBuilder interface {
	// BuildFromSource clones cloneURL into an ephemeral workspace and builds
	// an image tagged deterministically from appName. It returns the image tag.
	BuildFromSource(ctx context.Context, appName, cloneURL string) (string, error)
}
