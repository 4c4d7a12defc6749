package core

import (
	"maps"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the records persisted in BadgerDB. The set of
// stored types is small enough that these are written and maintained by
// hand; field order is part of the on-disk format and must not change.
var (
	JobMUS          = jobMUS{}
	StoredBlobMUS   = storedBlobMUS{}
	VectorRecordMUS = vectorRecordMUS{}
	ProjectMUS      = projectMUS{}
	ChunkMetaMUS    = chunkMetaMUS{}
)

// Timestamps are stored as Unix microseconds; the zero time is stored as 0.

func marshalTime(t time.Time, bs []byte) int {
	var v int64
	if !t.IsZero() {
		v = t.UnixMicro()
	}
	return varint.Int64.Marshal(v, bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	v, n, err := varint.Int64.Unmarshal(bs)
	if err != nil || v == 0 {
		return time.Time{}, n, err
	}
	return time.UnixMicro(v).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var v int64
	if !t.IsZero() {
		v = t.UnixMicro()
	}
	return varint.Int64.Size(v)
}

// String maps are stored with sorted keys so identical maps serialize
// identically.

func marshalStringMap(m map[string]string, bs []byte) (n int) {
	n = varint.Int.Marshal(len(m), bs)
	for _, k := range slices.Sorted(maps.Keys(m)) {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(m[k], bs[n:])
	}
	return n
}

func unmarshalStringMap(bs []byte) (m map[string]string, n int, err error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil || l == 0 {
		return nil, n, err
	}
	m = make(map[string]string, l)
	var (
		k, v string
		n1   int
	)
	for i := 0; i < l; i++ {
		k, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		v, n1, err = ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		m[k] = v
	}
	return m, n, nil
}

func sizeStringMap(m map[string]string) (size int) {
	size = varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}

func marshalFloat32s(v []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += varint.Float32.Marshal(f, bs[n:])
	}
	return n
}

func unmarshalFloat32s(bs []byte) (v []float32, n int, err error) {
	l, n, err := varint.Int.Unmarshal(bs)
	if err != nil || l == 0 {
		return nil, n, err
	}
	v = make([]float32, l)
	var n1 int
	for i := 0; i < l; i++ {
		v[i], n1, err = varint.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
	}
	return v, n, nil
}

func sizeFloat32s(v []float32) (size int) {
	size = varint.Int.Size(len(v))
	for _, f := range v {
		size += varint.Float32.Size(f)
	}
	return size
}

type jobMetadataMUS struct{}

func (jobMetadataMUS) Marshal(v JobMetadata, bs []byte) (n int) {
	n = ord.String.Marshal(v.Filename, bs)
	n += varint.Int64.Marshal(v.SizeBytes, bs[n:])
	n += varint.Int.Marshal(v.ChunkSize, bs[n:])
	n += ord.String.Marshal(v.Tier, bs[n:])
	n += ord.String.Marshal(v.DocumentID, bs[n:])
	n += ord.String.Marshal(v.Text, bs[n:])
	n += marshalStringMap(v.User, bs[n:])
	return n
}

func (jobMetadataMUS) Unmarshal(bs []byte) (v JobMetadata, n int, err error) {
	var n1 int
	if v.Filename, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.SizeBytes, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ChunkSize, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Tier, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.DocumentID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.User, n1, err = unmarshalStringMap(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (jobMetadataMUS) Size(v JobMetadata) int {
	return ord.String.Size(v.Filename) +
		varint.Int64.Size(v.SizeBytes) +
		varint.Int.Size(v.ChunkSize) +
		ord.String.Size(v.Tier) +
		ord.String.Size(v.DocumentID) +
		ord.String.Size(v.Text) +
		sizeStringMap(v.User)
}

type jobResultMUS struct{}

func (jobResultMUS) Marshal(v JobResult, bs []byte) (n int) {
	n = varint.Int.Marshal(v.PagesProcessed, bs)
	n += varint.Int.Marshal(v.TotalPages, bs[n:])
	n += varint.Int.Marshal(v.ChunksCreated, bs[n:])
	n += varint.Int.Marshal(v.EmbeddingsGenerated, bs[n:])
	n += varint.Int.Marshal(v.VectorsStored, bs[n:])
	n += varint.Int64.Marshal(v.ProcessingTimeMs, bs[n:])
	return n
}

func (jobResultMUS) Unmarshal(bs []byte) (v JobResult, n int, err error) {
	var n1 int
	if v.PagesProcessed, n, err = varint.Int.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.TotalPages, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ChunksCreated, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.EmbeddingsGenerated, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.VectorsStored, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ProcessingTimeMs, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (jobResultMUS) Size(v JobResult) int {
	return varint.Int.Size(v.PagesProcessed) +
		varint.Int.Size(v.TotalPages) +
		varint.Int.Size(v.ChunksCreated) +
		varint.Int.Size(v.EmbeddingsGenerated) +
		varint.Int.Size(v.VectorsStored) +
		varint.Int64.Size(v.ProcessingTimeMs)
}

type jobMUS struct{}

func (jobMUS) Marshal(v Job, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.OwnerID, bs[n:])
	n += ord.String.Marshal(v.ProjectID, bs[n:])
	n += ord.String.Marshal(v.Collection, bs[n:])
	n += ord.String.Marshal(string(v.Type), bs[n:])
	n += ord.String.Marshal(string(v.Status), bs[n:])
	n += varint.Int.Marshal(v.Progress, bs[n:])
	n += jobMetadataMUS{}.Marshal(v.Metadata, bs[n:])
	n += jobResultMUS{}.Marshal(v.Result, bs[n:])
	n += ord.String.Marshal(v.Error, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	n += marshalTime(v.CompletedAt, bs[n:])
	return n
}

func (jobMUS) Unmarshal(bs []byte) (v Job, n int, err error) {
	var (
		s  string
		n1 int
	)
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.OwnerID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ProjectID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Collection, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	v.Type = JobType(s)
	if s, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	v.Status = JobStatus(s)
	if v.Progress, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Metadata, n1, err = (jobMetadataMUS{}).Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Result, n1, err = (jobResultMUS{}).Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Error, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CompletedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (jobMUS) Size(v Job) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.OwnerID) +
		ord.String.Size(v.ProjectID) +
		ord.String.Size(v.Collection) +
		ord.String.Size(string(v.Type)) +
		ord.String.Size(string(v.Status)) +
		varint.Int.Size(v.Progress) +
		jobMetadataMUS{}.Size(v.Metadata) +
		jobResultMUS{}.Size(v.Result) +
		ord.String.Size(v.Error) +
		sizeTime(v.CreatedAt) +
		sizeTime(v.UpdatedAt) +
		sizeTime(v.CompletedAt)
}

type storedBlobMUS struct{}

func (storedBlobMUS) Marshal(v StoredBlob, bs []byte) (n int) {
	n = ord.String.Marshal(v.Hash, bs)
	n += varint.Int64.Marshal(v.SizeBytes, bs[n:])
	n += varint.Int.Marshal(v.RefCount, bs[n:])
	n += ord.String.Marshal(v.JobID, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.ExpiresAt, bs[n:])
	return n
}

func (storedBlobMUS) Unmarshal(bs []byte) (v StoredBlob, n int, err error) {
	var n1 int
	if v.Hash, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.SizeBytes, n1, err = varint.Int64.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.RefCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.JobID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ExpiresAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (storedBlobMUS) Size(v StoredBlob) int {
	return ord.String.Size(v.Hash) +
		varint.Int64.Size(v.SizeBytes) +
		varint.Int.Size(v.RefCount) +
		ord.String.Size(v.JobID) +
		sizeTime(v.CreatedAt) +
		sizeTime(v.ExpiresAt)
}

type chunkMetaMUS struct{}

func (chunkMetaMUS) Marshal(v ChunkMeta, bs []byte) (n int) {
	n = varint.Int.Marshal(v.Index, bs)
	n += varint.Int.Marshal(v.Size, bs[n:])
	n += varint.Int.Marshal(v.PageNumber, bs[n:])
	n += varint.Int.Marshal(v.TotalPages, bs[n:])
	n += ord.String.Marshal(v.Filename, bs[n:])
	n += ord.String.Marshal(v.SourceType, bs[n:])
	n += ord.String.Marshal(v.DocumentID, bs[n:])
	n += marshalStringMap(v.User, bs[n:])
	return n
}

func (chunkMetaMUS) Unmarshal(bs []byte) (v ChunkMeta, n int, err error) {
	var n1 int
	if v.Index, n, err = varint.Int.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.Size, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.PageNumber, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.TotalPages, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Filename, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.SourceType, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.DocumentID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.User, n1, err = unmarshalStringMap(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (chunkMetaMUS) Size(v ChunkMeta) int {
	return varint.Int.Size(v.Index) +
		varint.Int.Size(v.Size) +
		varint.Int.Size(v.PageNumber) +
		varint.Int.Size(v.TotalPages) +
		ord.String.Size(v.Filename) +
		ord.String.Size(v.SourceType) +
		ord.String.Size(v.DocumentID) +
		sizeStringMap(v.User)
}

type vectorRecordMUS struct{}

func (vectorRecordMUS) Marshal(v VectorRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.Text, bs[n:])
	n += marshalFloat32s(v.Embedding, bs[n:])
	n += chunkMetaMUS{}.Marshal(v.Meta, bs[n:])
	n += ord.String.Marshal(v.JobID, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.ExpiresAt, bs[n:])
	return n
}

func (vectorRecordMUS) Unmarshal(bs []byte) (v VectorRecord, n int, err error) {
	var n1 int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.Text, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Embedding, n1, err = unmarshalFloat32s(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Meta, n1, err = (chunkMetaMUS{}).Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.JobID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ExpiresAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (vectorRecordMUS) Size(v VectorRecord) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.Text) +
		sizeFloat32s(v.Embedding) +
		chunkMetaMUS{}.Size(v.Meta) +
		ord.String.Size(v.JobID) +
		sizeTime(v.CreatedAt) +
		sizeTime(v.ExpiresAt)
}

type projectMUS struct{}

func (projectMUS) Marshal(v Project, bs []byte) (n int) {
	n = ord.String.Marshal(v.ID, bs)
	n += ord.String.Marshal(v.OwnerID, bs[n:])
	n += ord.String.Marshal(v.Name, bs[n:])
	n += ord.String.Marshal(v.Tier, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.ExpiresAt, bs[n:])
	return n
}

func (projectMUS) Unmarshal(bs []byte) (v Project, n int, err error) {
	var n1 int
	if v.ID, n, err = ord.String.Unmarshal(bs); err != nil {
		return v, n, err
	}
	if v.OwnerID, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Name, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Tier, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ExpiresAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (projectMUS) Size(v Project) int {
	return ord.String.Size(v.ID) +
		ord.String.Size(v.OwnerID) +
		ord.String.Size(v.Name) +
		ord.String.Size(v.Tier) +
		sizeTime(v.CreatedAt) +
		sizeTime(v.ExpiresAt)
}
