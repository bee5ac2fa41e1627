package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/studyplanner/core"
)

// Key prefixes for different data types.
// Every prefix ends with ':' so no prefix is a prefix of another.
const (
	documentPrefix       = "docrec:"
	documentStatusPrefix = "docstat:"
	documentIDSeq        = "docseq"
	topicPrefix          = "toprec:"
	topicIDSeq           = "topseq"
	sessionPrefix        = "sesrec:"
	sessionTopicPrefix   = "sestop:"
	sessionIDSeq         = "sesseq"
	jobPrefix            = "jobrec:"
	jobDedupPrefix       = "jobdedup:"
	cachePrefix          = "ctxcache:"
	collectionPrefix     = "veccol:"
	pointPrefix          = "vecpt:"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", documentPrefix, id))
}

// makeDocumentStatusKey generates a composite key for the status index.
// Format: prefix:status:id
func makeDocumentStatusKey(status core.ProcessingStatus, id core.ID) []byte {
	buf := make([]byte, len(documentStatusPrefix)+9)
	offset := copy(buf, documentStatusPrefix)
	buf[offset] = byte(status)
	offset++
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialDocumentStatusKey generates a partial key for status scans.
func makePartialDocumentStatusKey(status core.ProcessingStatus) []byte {
	buf := make([]byte, len(documentStatusPrefix)+1)
	offset := copy(buf, documentStatusPrefix)
	buf[offset] = byte(status)
	return buf
}

// makeTopicKey generates a key for a topic by ID.
func makeTopicKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", topicPrefix, id))
}

// makeSessionKey generates a key for a study session by ID.
func makeSessionKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", sessionPrefix, id))
}

// makeSessionTopicKey generates a composite key for the per-topic session index.
// Format: prefix:owner:topic:timestamp:id
func makeSessionTopicKey(ownerID, topicID core.ID, timestamp time.Time, id core.ID) []byte {
	buf := make([]byte, len(sessionTopicPrefix)+32)
	offset := copy(buf, sessionTopicPrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(ownerID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(topicID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialSessionTopicKey generates a partial key for per-topic session scans.
// Format: prefix:owner:topic
func makePartialSessionTopicKey(ownerID, topicID core.ID) []byte {
	buf := make([]byte, len(sessionTopicPrefix)+16)
	offset := copy(buf, sessionTopicPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(ownerID))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(topicID))
	return buf
}

// makeJobKey generates a key for a job by handle.
func makeJobKey(id string) []byte {
	return []byte(jobPrefix + id)
}

// makeJobDedupKey generates a key holding the active job for a dedup key.
func makeJobDedupKey(dedupKey string) []byte {
	return []byte(jobDedupPrefix + dedupKey)
}

// makeCacheKey generates a key for a context cache entry.
func makeCacheKey(key string) []byte {
	return []byte(cachePrefix + key)
}

// makeCollectionKey generates a key for vector collection metadata.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makePointKey generates a key for a vector point.
// Format: prefix:collection:documentID:pointID
func makePointKey(collection string, documentID, pointID core.ID) []byte {
	prefix := makePartialPointKey(collection, documentID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(pointID))
	return buf
}

// makePartialPointKey generates a partial key for all points of a document.
func makePartialPointKey(collection string, documentID core.ID) []byte {
	prefix := pointPrefix + collection + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}
