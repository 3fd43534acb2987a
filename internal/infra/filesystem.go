package infra

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// WorkDir expands base, joins path to it and makes sure the directory exists.
func WorkDir(base string, path ...string) (string, error) {
	parts := append([]string{base}, path...)
	workDir, err := homedir.Expand(filepath.Join(parts...))
	if err != nil {
		return "", errors.Wrap(err, "expand work dir")
	}
	if err = os.MkdirAll(workDir, os.ModePerm); err != nil {
		return "", errors.Wrap(err, "create work dir")
	}
	log.WithField("dir", workDir).Trace("work dir ready")
	return workDir, nil
}
