package runtime

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ABIVersion is the boxed-value representation version this runtime
// implements. Compiled artifacts record the version they were built
// against; CheckABI gates handle sharing across a loaded boundary.
const ABIVersion = "1.1.0"

// ErrABIMismatch is returned when an artifact's required ABI version is
// incompatible with this runtime. Mismatch fails closed.
var ErrABIMismatch = fmt.Errorf("runtime: ABI version mismatch (runtime %s)", ABIVersion)

// CheckABI verifies that an artifact built against the required version
// may exchange handles with this runtime. The major versions must be
// equal and the required minor must not exceed the runtime minor; any
// unparsable version is rejected.
func CheckABI(required string) error {
	req, err := semver.NewVersion(required)
	if err != nil {
		return fmt.Errorf("%w: bad required version %q: %v", ErrABIMismatch, required, err)
	}
	rt := semver.MustParse(ABIVersion)
	if req.Major() != rt.Major() || req.Minor() > rt.Minor() {
		return fmt.Errorf("%w: artifact requires %s", ErrABIMismatch, required)
	}
	return nil
}
