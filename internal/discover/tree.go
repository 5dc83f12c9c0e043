package discover

import (
	"fmt"
	"sort"
	"strings"
)

// renderTree draws the directory tree: "." followed by one line per
// directory and important file, directories first, names compared case
// insensitively. Directories deeper than maxDepth collapse to "└── ...".
// At most maxEntries children are drawn per directory; the rest become a
// "... (N more)" line.
func renderTree(top *dirNode, maxDepth, maxEntries int) []string {
	lines := []string{"."}
	var add func(n *dirNode, prefix string, depth int)
	add = func(n *dirNode, prefix string, depth int) {
		if maxDepth > 0 && depth > maxDepth {
			if len(n.subdirs) > 0 {
				lines = append(lines, prefix+"└── ...")
			}
			return
		}

		dirs := append([]*dirNode(nil), n.subdirs...)
		sort.Slice(dirs, func(i, j int) bool { return lessFold(dirs[i].name, dirs[j].name) })
		files := append([]string(nil), n.important...)
		sort.Slice(files, func(i, j int) bool { return lessFold(files[i], files[j]) })

		total := len(dirs) + len(files)
		shown := total
		if maxEntries > 0 && total > maxEntries {
			shown = maxEntries
		}

		for i := 0; i < shown; i++ {
			last := i == total-1
			branch := "├── "
			if last {
				branch = "└── "
			}
			if i < len(dirs) {
				d := dirs[i]
				label := d.name + "/"
				if d.codeFiles > 0 {
					label += fmt.Sprintf(" (%d files)", d.codeFiles)
				}
				lines = append(lines, prefix+branch+label)
				next := prefix + "│   "
				if last {
					next = prefix + "    "
				}
				add(d, next, depth+1)
				continue
			}
			lines = append(lines, prefix+branch+files[i-len(dirs)])
		}
		if shown < total {
			lines = append(lines, fmt.Sprintf("%s└── ... (%d more)", prefix, total-shown))
		}
	}
	add(top, "", 0)
	return lines
}

func lessFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
