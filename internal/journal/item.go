package journal

// Item mirrors the public QueueItem one level down, kept as its own type so
// this package never imports the root package.
type Item struct {
	ID           uint64
	AddTimeMs    int64
	ExpireTimeMs int64
	Payload      []byte
}
