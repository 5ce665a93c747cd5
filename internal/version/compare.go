package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckRequirement checks that the running version satisfies the version a
// configuration file was written for.
//
// Rules:
//   - An empty requirement, or "main" on either side, skips the check
//   - The running version must be at least the required one
//   - Major versions must match; below 1.0.0 the minor version must match too
//
// Examples:
//   - Running 1.4.2, required 1.2 -> OK
//   - Running 1.1.0, required 1.2.0 -> ERROR (older)
//   - Running 2.0.0, required 1.2.0 -> ERROR (major differs)
//   - Running 0.2.0, required 0.1.0 -> ERROR (pre-1.0 minor differs)
func CheckRequirement(running, required string) error {
	running = strings.TrimPrefix(running, "v")
	required = strings.TrimPrefix(required, "v")

	if required == "" || running == "main" || required == "main" {
		return nil
	}

	current, err := semver.NewVersion(running)
	if err != nil {
		return fmt.Errorf("invalid running version '%s': %w", running, err)
	}

	constraint, err := semver.NewConstraint("^" + required)
	if err != nil {
		return fmt.Errorf("invalid required version '%s': %w", required, err)
	}

	if ok, errs := constraint.Validate(current); !ok {
		return fmt.Errorf("version %s does not satisfy ^%s: %v", current, required, errs)
	}

	return nil
}
