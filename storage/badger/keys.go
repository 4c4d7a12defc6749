package badger

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Key prefixes for different data types
const (
	jobPrefix        = "job"
	jobOwnerPrefix   = "jobown"
	jobProjectPrefix = "jobproj"
	blobMetaPrefix   = "blob"
	blobDataPrefix   = "blobd"
	vectorPrefix     = "vec"
	vectorDocPrefix  = "vecdoc"
	indexMarkPrefix  = "vecidx"
	projectPrefix    = "proj"
)

// makeJobKey generates the primary key for a job.
func makeJobKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", jobPrefix, id))
}

// makeJobOwnerKey generates a composite key for the owner index.
// Format: prefix:ownerID:timestamp:jobID, with the timestamp in
// BigEndian order so lexicographic sort matches chronological order.
func makeJobOwnerKey(ownerID string, createdAt time.Time, jobID string) []byte {
	return makeTimestampedKey(jobOwnerPrefix, ownerID, createdAt, jobID)
}

// makeJobOwnerScanPrefix generates the iteration prefix for one owner.
func makeJobOwnerScanPrefix(ownerID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", jobOwnerPrefix, ownerID))
}

// makeJobProjectKey generates a composite key for the project index.
func makeJobProjectKey(projectID string, createdAt time.Time, jobID string) []byte {
	return makeTimestampedKey(jobProjectPrefix, projectID, createdAt, jobID)
}

// makeJobProjectScanPrefix generates the iteration prefix for one project.
func makeJobProjectScanPrefix(projectID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", jobProjectPrefix, projectID))
}

func makeTimestampedKey(prefix, scope string, ts time.Time, id string) []byte {
	head := []byte(fmt.Sprintf("%s:%s:", prefix, scope))
	buf := make([]byte, len(head)+8+len(id))
	offset := copy(buf, head)
	binary.BigEndian.PutUint64(buf[offset:], uint64(ts.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makeBlobMetaKey generates the key for a blob's bookkeeping record.
func makeBlobMetaKey(hash string) []byte {
	return []byte(fmt.Sprintf("%s:%s", blobMetaPrefix, hash))
}

// makeBlobDataKey generates the key for one job's physical copy of a blob.
func makeBlobDataKey(hash, jobID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", blobDataPrefix, hash, jobID))
}

// makeBlobDataScanPrefix generates the iteration prefix for all physical
// copies of one hash.
func makeBlobDataScanPrefix(hash string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", blobDataPrefix, hash))
}

// makeVectorKey generates the key for one vector record in a collection.
func makeVectorKey(projectID, collection, recordID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", vectorPrefix, projectID, collection, recordID))
}

// makeVectorScanPrefix generates the iteration prefix for one collection.
func makeVectorScanPrefix(projectID, collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:", vectorPrefix, projectID, collection))
}

// makeVectorDocKey generates a composite key for the document index.
// Format: prefix:projectID:collection:documentID:recordID
func makeVectorDocKey(projectID, collection, documentID, recordID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s:%s", vectorDocPrefix, projectID, collection, documentID, recordID))
}

// makeVectorDocScanPrefix generates the iteration prefix for one document.
func makeVectorDocScanPrefix(projectID, collection, documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s:", vectorDocPrefix, projectID, collection, documentID))
}

// makeIndexMarkKey generates the key marking a collection as prepared.
func makeIndexMarkKey(projectID, collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", indexMarkPrefix, projectID, collection))
}

// makeProjectKey generates the key for a project.
func makeProjectKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", projectPrefix, id))
}
