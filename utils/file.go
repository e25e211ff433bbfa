package utils

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// LocalStore keeps uploads on disk under Root and serves them from URLPrefix.
type LocalStore struct {
	Root      string
	URLPrefix string
}

func NewLocalStore(root, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStore{Root: root, URLPrefix: urlPrefix}, nil
}

func (l *LocalStore) Put(_ context.Context, key string, fileHeader *multipart.FileHeader) (string, error) {
	dest := filepath.Join(l.Root, filepath.FromSlash(key))
	if err := SaveFile(fileHeader, dest); err != nil {
		return "", err
	}
	return l.URLPrefix + "/" + key, nil
}

// SaveFile saves the uploaded file to the given destination path
func SaveFile(fileHeader *multipart.FileHeader, destPath string) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, file)
	return err
}
