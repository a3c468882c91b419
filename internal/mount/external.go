package mount

import "strings"

// notMountedMarkers are fragments of the messages unmount helpers print
// when the target is not a mount point.
var notMountedMarkers = []string{
	"not mounted",
	"not found in /etc/mtab",
	"not currently mounted",
}

func isNotMounted(output string) bool {
	lower := strings.ToLower(output)
	for _, m := range notMountedMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
