package domain

// TagItem is a derived tag with its popularity across the cached archive set.
// The whole set is rebuilt from archives, never patched.
type TagItem struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CountTags tallies non-reserved tags across archives.
// normalize may be nil.
func CountTags(archives []*Archive, normalize func(string) string) []TagItem {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, a := range archives {
		for _, tag := range a.TagList() {
			if IsReservedTag(tag) {
				continue
			}
			if normalize != nil {
				tag = normalize(tag)
			}
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	items := make([]TagItem, 0, len(order))
	for _, tag := range order {
		items = append(items, TagItem{Tag: tag, Count: counts[tag]})
	}
	return items
}
