package a2cfg

// Alias directive.
// https://httpd.apache.org/docs/2.4/mod/mod_alias.html#alias
type Alias struct {
	URLPath string
	// FilePath is empty when the directive omits the target.
	FilePath string
}

// Location section opener.
// https://httpd.apache.org/docs/2.4/mod/core.html#location
type Location struct {
	Path string
}
