// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/studyplanner/core"
)

// Records are encoded field by field with MUS primitives. Timestamps are
// stored as Unix microseconds. Field order is part of the on-disk format:
// append new fields at the end only.

type recordWriter struct {
	size int
	ops  []func(bs []byte) int
}

func (w *recordWriter) uint64(v uint64) {
	w.size += varint.Uint64.Size(v)
	w.ops = append(w.ops, func(bs []byte) int { return varint.Uint64.Marshal(v, bs) })
}

func (w *recordWriter) int64(v int64) {
	w.size += varint.Int64.Size(v)
	w.ops = append(w.ops, func(bs []byte) int { return varint.Int64.Marshal(v, bs) })
}

func (w *recordWriter) int(v int) {
	w.size += varint.Int.Size(v)
	w.ops = append(w.ops, func(bs []byte) int { return varint.Int.Marshal(v, bs) })
}

func (w *recordWriter) float32(v float32) {
	w.size += varint.Float32.Size(v)
	w.ops = append(w.ops, func(bs []byte) int { return varint.Float32.Marshal(v, bs) })
}

func (w *recordWriter) string(v string) {
	w.size += ord.String.Size(v)
	w.ops = append(w.ops, func(bs []byte) int { return ord.String.Marshal(v, bs) })
}

func (w *recordWriter) bytes(v []byte) {
	w.string(string(v))
}

func (w *recordWriter) id(v core.ID) {
	w.uint64(uint64(v))
}

func (w *recordWriter) time(v time.Time) {
	w.int64(v.UnixMicro())
}

func (w *recordWriter) finish() []byte {
	buf := make([]byte, w.size)
	n := 0
	for _, op := range w.ops {
		n += op(buf[n:])
	}
	return buf
}

type recordReader struct {
	bs  []byte
	err error
}

func (r *recordReader) uint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.bs)
	if err != nil {
		r.err = err
		return 0
	}
	r.bs = r.bs[n:]
	return v
}

func (r *recordReader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs)
	if err != nil {
		r.err = err
		return 0
	}
	r.bs = r.bs[n:]
	return v
}

func (r *recordReader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs)
	if err != nil {
		r.err = err
		return 0
	}
	r.bs = r.bs[n:]
	return v
}

func (r *recordReader) float32() float32 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Float32.Unmarshal(r.bs)
	if err != nil {
		r.err = err
		return 0
	}
	r.bs = r.bs[n:]
	return v
}

func (r *recordReader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs)
	if err != nil {
		r.err = err
		return ""
	}
	r.bs = r.bs[n:]
	return v
}

func (r *recordReader) bytes() []byte {
	s := r.string()
	if s == "" {
		return nil
	}
	return []byte(s)
}

func (r *recordReader) id() core.ID {
	return core.ID(r.uint64())
}

var zeroUnixMicro = time.Time{}.UnixMicro()

func (r *recordReader) time() time.Time {
	v := r.int64()
	if v == zeroUnixMicro {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

// length reads a collection length and rejects values the remaining
// buffer could not possibly hold.
func (r *recordReader) length() int {
	n := r.int()
	if r.err == nil && (n < 0 || n > len(r.bs)) {
		r.err = ErrTruncatedData
		return 0
	}
	return n
}

func (r *recordReader) done() error {
	if r.err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, r.err)
	}
	return nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	w := &recordWriter{}
	w.id(id)
	return w.finish()
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	r := &recordReader{bs: data}
	id := r.id()
	return id, r.done()
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	w := &recordWriter{}
	w.id(doc.Id)
	w.id(doc.OwnerId)
	w.id(doc.TopicId)
	w.string(doc.BlobRef)
	w.string(doc.Filename)
	w.string(doc.ContentType)
	w.int(int(doc.Status))
	w.string(doc.ErrorMessage)
	w.string(string(doc.Stage))
	w.int(doc.ChunkCount)
	w.time(doc.CreatedAt)
	w.time(doc.UpdatedAt)
	w.time(doc.StageUpdatedAt)
	return w.finish()
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	r := &recordReader{bs: data}
	doc := &core.Document{
		Id:             r.id(),
		OwnerId:        r.id(),
		TopicId:        r.id(),
		BlobRef:        r.string(),
		Filename:       r.string(),
		ContentType:    r.string(),
		Status:         core.ProcessingStatus(r.int()),
		ErrorMessage:   r.string(),
		Stage:          core.Stage(r.string()),
		ChunkCount:     r.int(),
		CreatedAt:      r.time(),
		UpdatedAt:      r.time(),
		StageUpdatedAt: r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalTopic serializes a Topic to bytes.
func MarshalTopic(topic *core.Topic) []byte {
	w := &recordWriter{}
	w.id(topic.Id)
	w.id(topic.OwnerId)
	w.string(topic.Name)
	w.string(topic.Kind)
	w.time(topic.CreatedAt)
	return w.finish()
}

// UnmarshalTopic deserializes a Topic from bytes.
func UnmarshalTopic(data []byte) (*core.Topic, error) {
	r := &recordReader{bs: data}
	topic := &core.Topic{
		Id:        r.id(),
		OwnerId:   r.id(),
		Name:      r.string(),
		Kind:      r.string(),
		CreatedAt: r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return topic, nil
}

// MarshalStudySession serializes a StudySession to bytes.
func MarshalStudySession(session *core.StudySession) []byte {
	w := &recordWriter{}
	w.id(session.Id)
	w.id(session.OwnerId)
	w.id(session.TopicId)
	w.string(session.Question)
	w.string(session.Answer)
	w.int64(int64(session.ElapsedTime))
	w.string(session.Model)
	w.time(session.CreatedAt)
	return w.finish()
}

// UnmarshalStudySession deserializes a StudySession from bytes.
func UnmarshalStudySession(data []byte) (*core.StudySession, error) {
	r := &recordReader{bs: data}
	session := &core.StudySession{
		Id:          r.id(),
		OwnerId:     r.id(),
		TopicId:     r.id(),
		Question:    r.string(),
		Answer:      r.string(),
		ElapsedTime: time.Duration(r.int64()),
		Model:       r.string(),
		CreatedAt:   r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return session, nil
}

// MarshalJob serializes a Job to bytes.
func MarshalJob(job *core.Job) []byte {
	w := &recordWriter{}
	w.string(job.Id)
	w.string(string(job.Kind))
	w.bytes(job.Payload)
	w.string(string(job.State))
	w.int(job.Attempt)
	w.int(job.MaxAttempts)
	w.string(job.LastError)
	w.bytes(job.Result)
	w.string(job.DedupKey)
	w.time(job.EnqueuedAt)
	w.time(job.StartedAt)
	w.time(job.FinishedAt)
	return w.finish()
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	r := &recordReader{bs: data}
	job := &core.Job{
		Id:          r.string(),
		Kind:        core.JobKind(r.string()),
		Payload:     r.bytes(),
		State:       core.JobState(r.string()),
		Attempt:     r.int(),
		MaxAttempts: r.int(),
		LastError:   r.string(),
		Result:      r.bytes(),
		DedupKey:    r.string(),
		EnqueuedAt:  r.time(),
		StartedAt:   r.time(),
		FinishedAt:  r.time(),
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return job, nil
}

// MarshalTurns serializes a conversation window to bytes.
func MarshalTurns(turns []core.ConversationTurn) []byte {
	w := &recordWriter{}
	w.int(len(turns))
	for _, turn := range turns {
		w.string(string(turn.Role))
		w.string(turn.Content)
	}
	return w.finish()
}

// UnmarshalTurns deserializes a conversation window from bytes.
func UnmarshalTurns(data []byte) ([]core.ConversationTurn, error) {
	r := &recordReader{bs: data}
	count := r.length()
	turns := make([]core.ConversationTurn, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		turns = append(turns, core.ConversationTurn{
			Role:    core.Role(r.string()),
			Content: r.string(),
		})
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return turns, nil
}

// MarshalPoint serializes an indexed chunk point to bytes.
func MarshalPoint(point *core.VectorPoint) []byte {
	w := &recordWriter{}
	w.id(point.Id)
	w.int(len(point.Vector))
	for _, v := range point.Vector {
		w.float32(v)
	}
	w.id(point.Metadata.OwnerId)
	w.id(point.Metadata.TopicId)
	w.id(point.Metadata.DocumentId)
	w.int(point.Metadata.ChunkIndex)
	w.string(point.Metadata.SourceRef)
	w.string(point.Text)
	return w.finish()
}

// UnmarshalPoint deserializes an indexed chunk point from bytes.
func UnmarshalPoint(data []byte) (*core.VectorPoint, error) {
	r := &recordReader{bs: data}
	point := &core.VectorPoint{Id: r.id()}
	dims := r.length()
	if dims > 0 {
		point.Vector = make([]float32, dims)
		for i := range point.Vector {
			point.Vector[i] = r.float32()
		}
	}
	point.Metadata = core.ChunkMetadata{
		OwnerId:    r.id(),
		TopicId:    r.id(),
		DocumentId: r.id(),
		ChunkIndex: r.int(),
		SourceRef:  r.string(),
	}
	point.Text = r.string()
	if err := r.done(); err != nil {
		return nil, err
	}
	return point, nil
}

// MarshalCollection serializes vector collection metadata to bytes.
func MarshalCollection(name string, vectorSize uint64, distance string, indexedFields []string) []byte {
	w := &recordWriter{}
	w.string(name)
	w.uint64(vectorSize)
	w.string(distance)
	w.int(len(indexedFields))
	for _, field := range indexedFields {
		w.string(field)
	}
	return w.finish()
}

// UnmarshalCollection deserializes vector collection metadata from bytes.
func UnmarshalCollection(data []byte) (name string, vectorSize uint64, distance string, indexedFields []string, err error) {
	r := &recordReader{bs: data}
	name = r.string()
	vectorSize = r.uint64()
	distance = r.string()
	count := r.length()
	for i := 0; i < count && r.err == nil; i++ {
		indexedFields = append(indexedFields, r.string())
	}
	if err = r.done(); err != nil {
		return "", 0, "", nil, err
	}
	return name, vectorSize, distance, indexedFields, nil
}
