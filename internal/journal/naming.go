// Package journal owns file discovery, rotation, reclamation, and recovery
// for one queue directory, generalizing the teacher's
// internal/segment.Manager + internal/segment/naming.go
// (DiscoverSegments/ValidateSegmentSequence, rotate-on-threshold) from
// message-ID-keyed fixed-width segment names to the on-disk layout of
// spec §6: writer files `<queue>.<unixMs>`, reader checkpoint files
// `<queue>.read.<name>`, and `~~`-suffixed temporaries.
package journal

import (
	"strconv"
	"strings"
)

const (
	tempSuffix        = "~~"
	checkpointInfix   = ".read."
	defaultReaderName = ""
)

// writerFileName builds the name of a writer file created at tsMs
//.
func writerFileName(queue string, tsMs int64) string {
	return queue + "." + strconv.FormatInt(tsMs, 10)
}

// parseWriterFileName reports whether name is a writer file belonging to
// queue, and if so its millisecond-timestamp suffix. "<queue>.read.X" is
// explicitly rejected here even though it has a "." after the prefix,
// because the remainder must be all-decimal.
func parseWriterFileName(queue, name string) (tsMs int64, ok bool) {
	prefix := queue + "."
	if !strings.HasPrefix(name, prefix) {
		return 0, false
	}
	rest := name[len(prefix):]
	if rest == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// checkpointFileName builds the name of a reader's checkpoint file. The
// empty reader name yields the implicit default reader's file, "Q.read."
//.
func checkpointFileName(queue, readerName string) string {
	return queue + checkpointInfix + readerName
}

// parseCheckpointFileName reports whether name is a checkpoint file
// belonging to queue, and if so the reader name it carries (possibly
// empty, for the default reader).
func parseCheckpointFileName(queue, name string) (readerName string, ok bool) {
	prefix := queue + checkpointInfix
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	readerName = name[len(prefix):]
	if strings.Contains(readerName, "/") || strings.Contains(readerName, tempSuffix) {
		return "", false
	}
	return readerName, true
}

// isTempFile reports whether name carries the in-progress temporary suffix
//, regardless of which queue it belongs to.
func isTempFile(name string) bool {
	return strings.HasSuffix(name, tempSuffix)
}

// tempPath appends the temporary suffix to path, for atomic-rename writes
//.
func tempPath(path string) string {
	return path + tempSuffix
}
