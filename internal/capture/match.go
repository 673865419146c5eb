package capture

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// matchDevice resolves a requested device name against the enumerated names.
// An empty request selects the default device (or the first one). Otherwise
// the first case-insensitive substring match wins; if nothing matches, the
// error suggests the closest known name so a typo is a one-look fix.
func matchDevice(want string, devices []DeviceInfo) (int, error) {
	if len(devices) == 0 {
		return 0, fmt.Errorf("capture: no input devices found")
	}
	if want == "" {
		for i, d := range devices {
			if d.Default {
				return i, nil
			}
		}
		return 0, nil
	}
	lower := strings.ToLower(want)
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), lower) {
			return i, nil
		}
	}
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	if s := closest(want, names); s != "" {
		return 0, fmt.Errorf("capture: no input device matches %q, did you mean %q?", want, s)
	}
	return 0, fmt.Errorf("capture: no input device matches %q", want)
}

// closest returns the enumerated name most similar to want, or "" when
// nothing comes close enough to be a plausible suggestion.
func closest(want string, names []string) string {
	const minSimilarity = 0.6
	best, bestScore := "", minSimilarity
	for _, n := range names {
		if score := matchr.JaroWinkler(strings.ToLower(want), strings.ToLower(n), true); score > bestScore {
			best, bestScore = n, score
		}
	}
	return best
}
