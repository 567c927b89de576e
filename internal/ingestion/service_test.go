package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjckrbbt/analyser/internal/logger"
	"github.com/jjckrbbt/analyser/internal/processing"
	"github.com/jjckrbbt/analyser/internal/store"
)

type recordingWriter struct {
	calls map[string][]store.Chunk
	err   error
}

func (w *recordingWriter) ReplaceSource(ctx context.Context, source string, chunks []store.Chunk) error {
	if w.err != nil {
		return w.err
	}
	if w.calls == nil {
		w.calls = make(map[string][]store.Chunk)
	}
	w.calls[source] = chunks
	return nil
}

func fakeEmbed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestIngestSourceFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), "Deuxième document.")
	writeFile(t, filepath.Join(dir, "a.txt"), "Premier document.\n\nSecond paragraphe.")
	writeFile(t, filepath.Join(dir, "sub", "c.md"), "Sous-dossier.")
	writeFile(t, filepath.Join(dir, ".cache.md"), "caché")
	writeFile(t, filepath.Join(dir, "image.png"), "binaire")

	writer := &recordingWriter{}
	svc := NewService(fakeEmbed, writer, nil, logger.Discard())

	res, err := svc.IngestSource(context.Background(), processing.SourceConfig{Name: "guide", URI: dir, ChunkSize: 20})
	require.NoError(t, err)
	assert.Equal(t, "guide", res.Source)
	assert.Equal(t, 3, res.Documents)
	assert.NotEqual(t, uuid.Nil, res.JobID)

	chunks := writer.calls["guide"]
	require.Len(t, chunks, res.Chunks)
	var contents []string
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "guide", c.Source)
		assert.Equal(t, []float32{float32(len(c.Content)), 1}, c.Embedding)
		contents = append(contents, c.Content)
	}
	assert.Equal(t, []string{"Premier document.", "Second paragraphe.", "Deuxième document.", "Sous-dossier."}, contents)
}

func TestIngestSourceSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	writeFile(t, path, "II.4. Poltergeist.")

	writer := &recordingWriter{}
	svc := NewService(fakeEmbed, writer, nil, logger.Discard())
	res, err := svc.IngestSource(context.Background(), processing.SourceConfig{Name: "guide", URI: path})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, "II.4. Poltergeist.", writer.calls["guide"][0].Content)
}

func TestIngestSourceErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "guide.md"), "Contenu.")
	emptyDir := t.TempDir()

	failingEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("quota exceeded")
	}

	testCases := []struct {
		name          string
		embed         func(ctx context.Context, text string) ([]float32, error)
		writerErr     error
		src           processing.SourceConfig
		errorContains string
	}{
		{name: "missing path", embed: fakeEmbed, src: processing.SourceConfig{Name: "x", URI: filepath.Join(dir, "absent")}, errorContains: "failed to read source"},
		{name: "no documents", embed: fakeEmbed, src: processing.SourceConfig{Name: "x", URI: emptyDir}, errorContains: "no readable documents"},
		{name: "embedding failure", embed: failingEmbed, src: processing.SourceConfig{Name: "x", URI: dir}, errorContains: "quota exceeded"},
		{name: "writer failure", embed: fakeEmbed, writerErr: errors.New("db down"), src: processing.SourceConfig{Name: "x", URI: dir}, errorContains: "db down"},
		{name: "gcs without client", embed: fakeEmbed, src: processing.SourceConfig{Name: "x", URI: "gs://bucket/prefix"}, errorContains: "no GCS client"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			writer := &recordingWriter{err: tc.writerErr}
			svc := NewService(tc.embed, writer, nil, logger.Discard())
			_, err := svc.IngestSource(context.Background(), tc.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorContains)
			assert.Empty(t, writer.calls)
		})
	}
}

func TestIngestManifestStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "guide.md"), "Contenu.")

	writer := &recordingWriter{}
	svc := NewService(fakeEmbed, writer, nil, logger.Discard())
	results, err := svc.IngestManifest(context.Background(), &processing.KnowledgeManifest{Sources: []processing.SourceConfig{
		{Name: "ok", URI: dir},
		{Name: "broken", URI: filepath.Join(dir, "absent")},
		{Name: "never", URI: dir},
	}})
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Source)
	assert.Contains(t, writer.calls, "ok")
	assert.NotContains(t, writer.calls, "never")
}
