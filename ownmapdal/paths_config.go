package ownmapdal

import (
	"os"
	"path/filepath"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/userextra"
)

type PathsConfig struct {
	DataDir   string
	TraceDir  string
	ExportDir string
}

// NewPathsConfig lays out the data directories under baseDir, which may start with "~/"
func NewPathsConfig(baseDir string) (*PathsConfig, errorsx.Error) {
	expandedBaseDir, err := userextra.ExpandUser(baseDir)
	if err != nil {
		return nil, errorsx.Wrap(err, "baseDir", baseDir)
	}

	return &PathsConfig{
		DataDir:   filepath.Join(expandedBaseDir, "data"),
		TraceDir:  filepath.Join(expandedBaseDir, "traces"),
		ExportDir: filepath.Join(expandedBaseDir, "exports"),
	}, nil
}

// DefaultDBConnString is a sqlite database inside DataDir
func (pc *PathsConfig) DefaultDBConnString() string {
	return string(DBFileTypeSQLite) + ConnectionPathSeparator + filepath.Join(pc.DataDir, "edits.db")
}

func (pc *PathsConfig) EnsurePaths() errorsx.Error {
	for _, dirPath := range []string{pc.DataDir, pc.TraceDir, pc.ExportDir} {
		err := os.MkdirAll(dirPath, 0755)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	return nil
}
