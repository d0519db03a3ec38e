// Package policy declares the contracts the CLI compiles against for the
// policy-repo and update-list collaborators. The monitors, the Cachix HTTP
// client and the update-list web server live outside this module; only their
// consumer-side shapes are defined here.
package policy

import (
	"context"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
)

// UpdateEntry is one published system image a device may update to.
type UpdateEntry struct {
	Version string
	Channel string
	URL     string
}

// Source answers policy queries and update lookups for the CLI.
type Source interface {
	// PolicyQuery evaluates query against the per-VM policy archive rooted
	// at path ("" for the default archive).
	PolicyQuery(ctx context.Context, query, path string) (string, error)
	// UpdateQuery returns the newest update available on the device's
	// channel.
	UpdateQuery(ctx context.Context) (UpdateEntry, error)
	// UpdateList returns every update the channel currently publishes.
	UpdateList(ctx context.Context) ([]UpdateEntry, error)
	// CachixPin resolves a Cachix pin name to its store path.
	CachixPin(ctx context.Context, name string) (string, error)
}

// Unconfigured is the Source used when no policy backend is wired in; every
// call reports Unimplemented.
type Unconfigured struct{}

var _ Source = Unconfigured{}

func (Unconfigured) PolicyQuery(context.Context, string, string) (string, error) {
	return "", givcerrors.New(givcerrors.Unimplemented, "no policy source configured")
}

func (Unconfigured) UpdateQuery(context.Context) (UpdateEntry, error) {
	return UpdateEntry{}, givcerrors.New(givcerrors.Unimplemented, "no update source configured")
}

func (Unconfigured) UpdateList(context.Context) ([]UpdateEntry, error) {
	return nil, givcerrors.New(givcerrors.Unimplemented, "no update source configured")
}

func (Unconfigured) CachixPin(context.Context, string) (string, error) {
	return "", givcerrors.New(givcerrors.Unimplemented, "no cachix client configured")
}
