// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/hclsimple"

	nerrors "nat64.dev/core/internal/errors"
)

// File is an HCL configuration file loaded from disk. Unlike the
// teacher's ConfigFile it does not preserve comments on round-trip
// through hclwrite: this configuration is small enough, and mutated
// almost exclusively through the administrative protocol's GENERAL
// UPDATE operation (spec.md §6), that comment fidelity is not worth the
// extra AST bookkeeping.
type File struct {
	Path   string
	Config *Config
}

// Load reads and decodes an HCL config file, applying defaults for any
// field the file omits. Returns an error if the result fails Validate.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nerrors.Wrap(err, nerrors.KindInternal, "config: read failed")
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes data as HCL with filename used only for diagnostics.
func LoadBytes(filename string, data []byte) (*File, error) {
	cfg := Default()
	if err := hclsimple.Decode(filename, data, nil, cfg); err != nil {
		return nil, nerrors.Wrap(err, nerrors.KindValidation, "config: decode failed")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &File{Path: filename, Config: cfg}, nil
}

// Save writes the config back to its original path.
func (f *File) Save() error {
	return f.SaveTo(f.Path)
}

// SaveTo writes the config to path as HCL, backing up any existing file
// at that path to path+".bak" first (mirrors the teacher's
// backup-before-overwrite habit in internal/config/hcl.go).
func (f *File) SaveTo(path string) error {
	if err := f.Config.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil {
			return nerrors.Wrap(err, nerrors.KindInternal, "config: backup failed")
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nerrors.Wrap(err, nerrors.KindInternal, "config: mkdir failed")
	}
	data, err := encodeHCL(f.Config)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nerrors.Wrap(err, nerrors.KindInternal, "config: write failed")
	}
	f.Path = path
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, data)
}

// writeFileAtomic writes via a temp file plus rename, the way the
// teacher's SecureWriteFile does, so a crash mid-write never leaves a
// truncated config on disk.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
