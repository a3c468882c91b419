//go:build !windows

package mount

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ExternalUnmount detaches target with the platform's unmount helper.
// A target that is not mounted counts as success.
func ExternalUnmount(ctx context.Context, target string) error {
	var candidates [][]string
	if runtime.GOOS == "linux" {
		candidates = append(candidates,
			[]string{"fusermount3", "-u", target},
			[]string{"fusermount", "-u", target})
	}
	candidates = append(candidates, []string{"umount", target})

	var errs []error
	for _, argv := range candidates {
		path, err := exec.LookPath(argv[0])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out, err := exec.CommandContext(ctx, path, argv[1:]...).CombinedOutput()
		if err == nil || isNotMounted(string(out)) {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(string(out))))
	}
	return fmt.Errorf("unmount %s: %w", target, errors.Join(errs...))
}
