package internal

// LinkKind tells whether a link names a folder (login) or a single file (public node)
type LinkKind int

const (
	LinkFile LinkKind = iota
	LinkFolder
)

func (k LinkKind) String() string {
	if k == LinkFolder {
		return "folder"
	}
	return "file"
}

// LinkInfo contains parsed information from a storage link
type LinkInfo struct {
	Raw    string
	Scheme string
	Kind   LinkKind

	// Bucket is set for s3 links
	Bucket string
	// Location is the local path or the object key/prefix
	Location string
}
