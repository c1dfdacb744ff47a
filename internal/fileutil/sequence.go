package fileutil

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// frameNamePattern splits a file name into prefix, frame digits, and
// extension suffix. Only digit runs immediately before the extension count
// as frame numbers.
var frameNamePattern = regexp.MustCompile(`^(.*?)(\d+)(\.[^.]+)$`)

// FrameSequence is one numbered frame run inside a directory.
type FrameSequence struct {
	// Pattern is the printf-style path for the run, e.g. plates/bg.%04d.exr.
	Pattern string
	// Frames holds the member paths in frame order.
	Frames []string
	Start  int
	End    int
}

type frameGroup struct {
	prefix string
	width  int
	suffix string
}

type frameMember struct {
	path   string
	number int
}

// GroupFrameSequences splits the named directory entries into frame
// sequences and standalone files. Files group into a sequence when they
// share prefix, digit padding, and extension; a group needs at least two
// members, a lone numbered file stays standalone. Returned sequences and
// singles are both deterministically ordered.
func GroupFrameSequences(dir string, names []string) ([]FrameSequence, []string) {
	groups := make(map[frameGroup][]frameMember)
	var groupOrder []frameGroup
	var singles []string

	for _, name := range names {
		m := frameNamePattern.FindStringSubmatch(name)
		if m == nil {
			singles = append(singles, filepath.Join(dir, name))
			continue
		}
		number, err := strconv.Atoi(m[2])
		if err != nil {
			singles = append(singles, filepath.Join(dir, name))
			continue
		}
		key := frameGroup{prefix: m[1], width: len(m[2]), suffix: m[3]}
		if _, seen := groups[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], frameMember{path: filepath.Join(dir, name), number: number})
	}

	var sequences []FrameSequence
	for _, key := range groupOrder {
		members := groups[key]
		if len(members) < 2 {
			for _, member := range members {
				singles = append(singles, member.path)
			}
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].number < members[j].number })

		frames := make([]string, len(members))
		for i, member := range members {
			frames[i] = member.path
		}
		sequences = append(sequences, FrameSequence{
			Pattern: filepath.Join(dir, key.prefix+framePlaceholder(key.width)+key.suffix),
			Frames:  frames,
			Start:   members[0].number,
			End:     members[len(members)-1].number,
		})
	}

	sort.Slice(sequences, func(i, j int) bool { return sequences[i].Pattern < sequences[j].Pattern })
	sort.Strings(singles)
	return sequences, singles
}

func framePlaceholder(width int) string {
	if width <= 1 {
		return "%d"
	}
	return fmt.Sprintf("%%0%dd", width)
}

// Extension returns the lower-cased extension of path without the dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// DeliveryRelative returns the portion of path below its deliveryID
// component, the form work path templates are authored against. Paths that
// do not contain the delivery ID fall back to their base name.
func DeliveryRelative(deliveryID, path string) string {
	if deliveryID != "" {
		parts := strings.Split(filepath.Clean(path), string(filepath.Separator))
		for i := len(parts) - 2; i >= 0; i-- {
			if parts[i] == deliveryID {
				return filepath.Join(parts[i+1:]...)
			}
		}
	}
	return filepath.Base(path)
}

// RelativeWithin returns path relative to root when path sits inside root.
// Paths outside root, including root's siblings reachable via "..", report
// ok=false and the original path.
func RelativeWithin(root, path string) (string, bool) {
	if root == "" {
		return path, false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path, false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path, false
	}
	return rel, true
}
