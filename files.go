/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/Seednode/picturebox/games/pictures"
	"github.com/spf13/afero"
)

var errBadImageRef = errors.New("invalid image reference")

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// readImage loads an image asset from the image directory. Only plain
// filenames with an image extension are accepted.
func readImage(fs afero.Fs, dir, ref string) ([]byte, string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") || !pictures.IsImage(ref) {
		return nil, "", errBadImageRef
	}

	data, err := afero.ReadFile(fs, path.Join(filepath.ToSlash(dir), ref))
	if err != nil {
		return nil, "", err
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(ref)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return data, contentType, nil
}
