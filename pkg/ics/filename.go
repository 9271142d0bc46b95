package ics

import (
	"fmt"
	"os"
	"strings"
)

// Path resolution between the header (.ics) and pixel (.ids) files.
// Extensions are matched case-insensitively; when the user spelled the
// extension in upper case the resolved sibling keeps upper case too.

// extOf returns the trailing extension of path including the dot, with
// .gz/.Z compression suffixes folded into it ("a.ids.gz" -> ".ids.gz").
func extOf(path string) string {
	lower := strings.ToLower(path)
	for _, suffix := range []string{".ids.gz", ".ids.z"} {
		if strings.HasSuffix(lower, suffix) {
			return path[len(path)-len(suffix):]
		}
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 && !strings.ContainsAny(path[i:], "/\\") {
		return path[i:]
	}
	return ""
}

// trimPixelExt strips a .ids/.ids.gz/.ids.Z extension, reporting
// whether the user wrote it in upper case.
func trimPixelExt(path string) (base string, upper, ok bool) {
	ext := extOf(path)
	switch strings.ToLower(ext) {
	case ".ids", ".ids.gz", ".ids.z":
		return path[:len(path)-len(ext)], strings.HasPrefix(ext, ".IDS"), true
	}
	return path, false, false
}

// findHeaderFile resolves a user path to an existing .ics header file.
func findHeaderFile(path string, force bool) (string, error) {
	if force {
		if fileExists(path) {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrFileOpenHeader, path)
	}

	var candidates []string
	if base, upper, ok := trimPixelExt(path); ok {
		if upper {
			candidates = append(candidates, base+".ICS")
		}
		candidates = append(candidates, base+".ics")
	} else if strings.EqualFold(extOf(path), ".ics") {
		candidates = append(candidates, path)
	} else {
		candidates = append(candidates, path+".ics", path)
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: no header file for %s", ErrFileOpenHeader, path)
}

// findPixelFile locates the sibling pixel file of a v1 header and
// reports the compression implied by its extension. A plain .ids file
// keeps the compression declared in the header.
func findPixelFile(icsPath string, declared Compression) (string, Compression, error) {
	ext := extOf(icsPath)
	base := icsPath
	idsExt := ".ids"
	if strings.EqualFold(ext, ".ics") {
		base = icsPath[:len(icsPath)-len(ext)]
		if ext == ".ICS" {
			idsExt = ".IDS"
		}
	}

	if p := base + idsExt; fileExists(p) {
		return p, declared, nil
	}
	if p := base + idsExt + ".gz"; fileExists(p) {
		return p, CompressionGzip, nil
	}
	if p := base + idsExt + ".Z"; fileExists(p) {
		return p, CompressionCompress, nil
	}
	return "", declared, fmt.Errorf("%w: no pixel file for %s", ErrFileOpenPixels, icsPath)
}

// pixelFileName returns the pixel file path a v1 write produces.
func pixelFileName(icsPath string) string {
	ext := extOf(icsPath)
	if strings.EqualFold(ext, ".ics") {
		base := icsPath[:len(icsPath)-len(ext)]
		if ext == ".ICS" {
			return base + ".IDS"
		}
		return base + ".ids"
	}
	return icsPath + ".ids"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
