// Package filestore is the URL-addressed blob store for survey photos,
// signatures, and export workbooks. Backed by viant/afs, so the base URL
// decides the scheme (file:// in development, any afs-supported scheme in
// production) without code changes.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

type Store struct {
	fs      afs.Service
	baseURL string
}

func New(baseURL string) *Store {
	return &Store{
		fs:      afs.New(),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *Store) objectURL(parts ...string) string {
	return s.baseURL + "/" + strings.Join(parts, "/")
}

func (s *Store) save(ctx context.Context, url string, data []byte) (string, error) {
	if err := s.fs.Upload(ctx, url, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("filestore: upload %s: %w", url, err)
	}
	return url, nil
}

// SavePhoto stores a watermarked survey photo and returns its URL.
func (s *Store) SavePhoto(ctx context.Context, surveyID string, position int, data []byte) (string, error) {
	return s.save(ctx, s.objectURL("photos", surveyID, fmt.Sprintf("%d.jpg", position)), data)
}

// SaveSignature stores the respondent signature image.
func (s *Store) SaveSignature(ctx context.Context, surveyID string, ext string, data []byte) (string, error) {
	return s.save(ctx, s.objectURL("signatures", surveyID+ext), data)
}

// SaveExport stores a finished export workbook.
func (s *Store) SaveExport(ctx context.Context, jobID string, data []byte) (string, error) {
	return s.save(ctx, s.objectURL("exports", jobID+".xlsx"), data)
}

// Open streams a previously stored object.
func (s *Store) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	rc, err := s.fs.OpenURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", url, err)
	}
	return rc, nil
}

// Delete removes an object; missing objects are not an error.
func (s *Store) Delete(ctx context.Context, url string) error {
	ok, err := s.fs.Exists(ctx, url)
	if err != nil {
		return fmt.Errorf("filestore: stat %s: %w", url, err)
	}
	if !ok {
		return nil
	}
	if err := s.fs.Delete(ctx, url); err != nil {
		return fmt.Errorf("filestore: delete %s: %w", url, err)
	}
	return nil
}
