package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type SharedDiskStorage struct {
	basepath string
}

func NewSharedDisk(basepath string) Storage {
	return &SharedDiskStorage{basepath: basepath}
}

func (s *SharedDiskStorage) Read(path string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.basepath, path))
	if err != nil {
		return nil, fmt.Errorf("error reading file %v: %w", path, err)
	}

	return file, nil
}

func (s *SharedDiskStorage) Write(path string, data io.Reader) error {
	fullpath := filepath.Join(s.basepath, path)

	err := os.MkdirAll(filepath.Dir(fullpath), 0777)
	if err != nil {
		return fmt.Errorf("error creating parent directory %v: %w", path, err)
	}

	file, err := os.Create(fullpath)
	if err != nil {
		return fmt.Errorf("error opening file %v: %w", path, err)
	}
	defer file.Close()

	_, err = io.Copy(file, data)
	if err != nil {
		return fmt.Errorf("error writing to file %v: %w", path, err)
	}

	return nil
}

func (s *SharedDiskStorage) Delete(path string) error {
	err := os.RemoveAll(filepath.Join(s.basepath, path))
	if err != nil {
		return fmt.Errorf("error deleting file %v: %w", path, err)
	}
	return nil
}

func (s *SharedDiskStorage) Exists(path string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.basepath, path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("error checking file %v: %w", path, err)
	}
	return true, nil
}

func (s *SharedDiskStorage) Location() string {
	return s.basepath
}
