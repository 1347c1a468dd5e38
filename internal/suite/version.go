package suite

import (
	"fmt"

	"github.com/blang/semver"

	"github.com/restyrun/resty/internal/rerr"
)

// Version is the running binary's version, set by cmd/resty's main from its
// ldflags-injected version var. It defaults to a pre-release
// sentinel so min_resty_version checks fail loudly if a build forgets to
// stamp it, rather than silently passing.
var Version = "0.0.0-dev"

// requireVersion enforces a Config block's min_resty_version constraint
// against Version, per SPEC_FULL.md's semver gating enrichment.
func requireVersion(min string) error {
	want, err := semver.Parse(min)
	if err != nil {
		return rerr.Wrap(rerr.KindVersionMismatch, fmt.Sprintf("invalid min_resty_version %q", min), err)
	}
	running, err := semver.Parse(Version)
	if err != nil {
		return rerr.Wrap(rerr.KindVersionMismatch, fmt.Sprintf("running version %q is not valid semver", Version), err)
	}
	if running.LT(want) {
		return rerr.New(rerr.KindVersionMismatch,
			fmt.Sprintf("file requires resty >= %s, running %s", want, running))
	}
	return nil
}
