/*
Copyright pg-auto-ha Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package fileutils collects the small set of atomic file operations the
// keeper relies on to persist state: write-temp-then-rename, existence
// checks, and directory content enumeration.
package fileutils

import (
	"io"
	"os"
	"path/filepath"
)

// FileExists checks for the existence of a file.
func FileExists(fileName string) (bool, error) {
	_, err := os.Stat(fileName)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReadFile reads the whole content of a file.
func ReadFile(fileName string) ([]byte, error) {
	return os.ReadFile(fileName)
}

// WriteStringToFile writes content to fileName, creating parent directories
// as needed, only touching the file (and reporting changed=true) when the
// new content differs from what is already on disk. The write itself goes
// through a temporary file followed by a rename so a concurrent reader (or
// a keeper restarting mid-write) never observes a partial file.
func WriteStringToFile(fileName string, content string) (changed bool, err error) {
	existing, err := FileExists(fileName)
	if err != nil {
		return false, err
	}

	if existing {
		currentContent, err := ReadFile(fileName)
		if err != nil {
			return false, err
		}
		if string(currentContent) == content {
			return false, nil
		}
	}

	dir := filepath.Dir(fileName)
	if err := EnsureDirectoryExists(dir); err != nil {
		return false, err
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return false, err
	}
	tmpName := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmpFile.WriteString(content); err != nil {
		_ = tmpFile.Close()
		return false, err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return false, err
	}
	if err := tmpFile.Close(); err != nil {
		return false, err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return false, err
	}

	if err := os.Rename(tmpName, fileName); err != nil {
		return false, err
	}

	return true, nil
}

// EnsureDirectoryExists creates dir (and any missing parents) if it does
// not exist already.
func EnsureDirectoryExists(dir string) error {
	exists, err := FileExists(dir)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return os.MkdirAll(dir, 0o750)
}

// EnsureParentDirectoryExists creates the parent directory of fileName (and
// any missing ancestors) if it does not exist already.
func EnsureParentDirectoryExists(fileName string) error {
	return EnsureDirectoryExists(filepath.Dir(fileName))
}

// CopyFile copies the content of source into destination, creating the
// destination's parent directory if needed.
func CopyFile(source, destination string) error {
	in, err := os.Open(source) //nolint:gosec
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	if err := EnsureDirectoryExists(filepath.Dir(destination)); err != nil {
		return err
	}

	out, err := os.Create(destination) //nolint:gosec
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Sync()
}

// RemoveFile removes a file, returning no error when it is already absent.
func RemoveFile(fileName string) error {
	err := os.Remove(fileName)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// RemoveDirectoryContent removes every entry inside dir, leaving dir itself
// in place.
func RemoveDirectoryContent(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// GetDirectoryContent returns the names of the entries directly inside dir.
func GetDirectoryContent(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// IsDirectoryEmpty reports whether dir exists and has no entries, the check
// the keeper uses to decide whether PGDATA needs an initdb/base-backup.
func IsDirectoryEmpty(dir string) (bool, error) {
	exists, err := FileExists(dir)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	names, err := GetDirectoryContent(dir)
	if err != nil {
		return false, err
	}
	return len(names) == 0, nil
}
