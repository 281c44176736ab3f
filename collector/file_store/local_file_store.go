package file_store

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/peek4c/peek4c/utils"
	"github.com/pkg/errors"
)

// LocalFileStore keeps media files flat in one directory.
type LocalFileStore struct {
	getter     Getter
	folderName string
}

func NewLocalFileStore(getter Getter, folderName string) (*LocalFileStore, error) {
	if err := CreateFolder(folderName); err != nil {
		return nil, err
	}
	return &LocalFileStore{getter: getter, folderName: folderName}, nil
}

func CreateFolder(folderName string) error {
	return errors.Wrapf(os.MkdirAll(folderName, os.ModePerm), "create %s", folderName)
}

// GenerateFileNameFromUrl names a file after the last path segment of the url,
// which for the media host is the unique upload stem plus extension. Urls
// without one get the md5 of the url.
func GenerateFileNameFromUrl(rawURL string) (string, error) {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" || strings.ContainsAny(name, `\:`) {
		hash, err := utils.TextToMd5Hash(rawURL)
		if err != nil {
			return "", err
		}
		name = hash
	}
	return name, nil
}

func (s *LocalFileStore) FetchAndStore(ctx context.Context, url string) (string, error) {
	fileName, err := GenerateFileNameFromUrl(url)
	if err != nil {
		return "", err
	}
	body, err := s.getter.Get(ctx, url)
	if err != nil {
		return "", err
	}

	localPath := filepath.Join(s.folderName, fileName)
	// Write then rename so a reader never sees a partial file.
	tmp, err := os.CreateTemp(s.folderName, "."+fileName+".*")
	if err != nil {
		return "", errors.Wrap(err, "create temp file")
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "write %s", localPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "write %s", localPath)
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		os.Remove(tmp.Name())
		return "", errors.Wrapf(err, "rename to %s", localPath)
	}
	return localPath, nil
}

func (s *LocalFileStore) Exists(localPath string) bool {
	info, err := os.Stat(localPath)
	return err == nil && !info.IsDir()
}

// CleanUp empties the folder, keeping the folder itself.
func (s *LocalFileStore) CleanUp() error {
	entries, err := os.ReadDir(s.folderName)
	if err != nil {
		return errors.Wrapf(err, "read %s", s.folderName)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.folderName, e.Name())); err != nil {
			return errors.Wrapf(err, "remove %s", e.Name())
		}
	}
	return nil
}
