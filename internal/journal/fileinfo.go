package journal

// FileInfo is the per-writer-file summary used for id→file resolution
//. HeadID is the smallest id written to the file,
// TailID the largest; for an empty/just-opened file TailID is 0 and HeadID
// is the id the next Put will be assigned.
type FileInfo struct {
	Path       string
	HeadID     uint64
	TailID     uint64
	ItemCount  int
	TotalBytes int64
}

// empty reports whether the file has never had a record written to it.
func (fi *FileInfo) empty() bool {
	return fi.ItemCount == 0
}
