package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// errProtected reports a file left alone because it already exists.
var errProtected = errors.New("file exists")

type existingPolicy int

const (
	// keepBoth writes next to an existing file as name.1, name.2, ...
	keepBoth existingPolicy = iota
	overwriteExisting
	protectExisting
)

// safeName reduces the transmitted filename to a plain name inside the
// output directory.
func safeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(filepath.FromSlash(name))
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return "received.bin"
	}
	return name
}

// storeFile writes data into dir under the transmitted name and returns
// the path used.
func storeFile(dir, name string, data []byte, policy existingPolicy) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, safeName(name))
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL

	switch policy {
	case overwriteExisting:
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case protectExisting:
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s: %w", path, errProtected)
		}
	case keepBoth:
		base := path
		for i := 1; ; i++ {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				break
			}
			path = fmt.Sprintf("%s.%d", base, i)
		}
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
