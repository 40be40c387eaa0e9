package homepage

// BookmarkEntry is one bookmark's properties in bookmarks.yaml.
type BookmarkEntry struct {
	Icon        string `yaml:"icon"`
	Abbr        string `yaml:"abbr"`
	Href        string `yaml:"href"`
	Description string `yaml:"description"`
}

// BookmarkGroup maps a group name to its bookmarks. Each bookmark name maps
// to a single-element list holding its properties, e.g. group "Developer"
// holding bookmark "Github" with abbr GH and href https://github.com/.
type BookmarkGroup map[string][]map[string][]BookmarkEntry

// BookmarksConfig is the root of bookmarks.yaml.
type BookmarksConfig []BookmarkGroup
