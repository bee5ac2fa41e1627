package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/studyplanner"
	"github.com/poiesic/studyplanner/config"
	"github.com/poiesic/studyplanner/core"
)

var (
	srcDir    = flag.String("dir", "", "directory of study materials to load")
	ownerID   = flag.Uint64("owner", 1, "owner of the seeded topic and documents")
	topicName = flag.String("topic-name", "Sample Topic", "name of the topic to create")
	topicKind = flag.String("topic-kind", "lecture", "lesson form of the topic")
	envFile   = flag.String("env-file", ".env", "settings file")
	enqueue   = flag.Bool("enqueue", true, "queue an ingestion job per document")
)

var sampleNotes = map[string]string{
	"vectors.txt": "A vector space is a set closed under addition and scalar multiplication. " +
		"Every basis of a finite dimensional vector space has the same number of elements, its dimension.",
	"matrices.md": "# Matrices\n\nA square matrix is invertible exactly when its determinant is nonzero. " +
		"The rank of a matrix equals the dimension of its column space.",
	"eigen.txt": "An eigenvector of a linear map is a nonzero vector that the map only scales. " +
		"The scale factor is its eigenvalue. Symmetric matrices have real eigenvalues.",
}

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// material is one file to upload.
type material struct {
	name string
	open func() (*os.File, error)
	text string
}

// filesFromDir returns an iterator over the regular files under dir.
func filesFromDir(dir string) iter.Seq2[material, error] {
	return func(yield func(material, error) bool) {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			m := material{name: filepath.ToSlash(rel), open: func() (*os.File, error) { return os.Open(path) }}
			if !yield(m, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(material{}, err)
		}
	}
}

// filesFromSamples returns an iterator over the built-in notes.
func filesFromSamples() iter.Seq2[material, error] {
	return func(yield func(material, error) bool) {
		for name, text := range sampleNotes {
			if !yield(material{name: name, text: text}, nil) {
				return
			}
		}
	}
}

func upload(ctx context.Context, runtime *studyplanner.Runtime, topic *core.Topic, m material) (*core.Document, error) {
	ref := fmt.Sprintf("seed/%d/%s", topic.Id, m.name)
	if m.open != nil {
		f, err := m.open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := runtime.Blobs().Put(ctx, ref, f); err != nil {
			return nil, err
		}
	} else if err := runtime.Blobs().Put(ctx, ref, strings.NewReader(m.text)); err != nil {
		return nil, err
	}

	docs, err := runtime.Documents().AddDocuments(ctx, &core.Document{
		OwnerId:     topic.OwnerId,
		TopicId:     topic.Id,
		BlobRef:     ref,
		Filename:    filepath.Base(m.name),
		ContentType: contentType(m.name),
	})
	if err != nil {
		return nil, err
	}
	return docs[0], nil
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx, *envFile)
	if err != nil {
		panic(err)
	}
	runtime, err := studyplanner.Open(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer runtime.Close()

	topics, err := runtime.Topics().AddTopics(ctx, &core.Topic{
		OwnerId: core.ID(*ownerID),
		Name:    *topicName,
		Kind:    *topicKind,
	})
	if err != nil {
		panic(err)
	}
	topic := topics[0]
	slog.Info("created topic", "topic_id", topic.Id, "name", topic.Name)

	source := filesFromSamples()
	if *srcDir != "" {
		source = filesFromDir(*srcDir)
	}

	for m, err := range source {
		if err != nil {
			panic(err)
		}
		doc, err := upload(ctx, runtime, topic, m)
		if err != nil {
			panic(err)
		}
		slog.Info("added document", "document_id", doc.Id, "ref", doc.BlobRef)
		if !*enqueue {
			continue
		}
		jobID, err := runtime.EnqueueIngestion(ctx, doc.Id)
		if err != nil {
			panic(err)
		}
		slog.Info("queued ingestion", "document_id", doc.Id, "job_id", jobID)
	}
}
