package skills

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

var scriptExtensions = map[string]struct{}{
	".sh": {}, ".py": {}, ".js": {}, ".ts": {}, ".rb": {}, ".go": {},
}

var referenceExtensions = map[string]struct{}{
	".md": {}, ".txt": {}, ".json": {}, ".yaml": {}, ".yml": {}, ".csv": {},
}

var assetExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".pdf": {}, ".zip": {},
}

// dependencyHintDirs maps a well-known directory name, if present anywhere
// under a skill root, to a symbolic dependency token.
var dependencyHintDirs = map[string]string{
	"node_modules": "node_modules",
	"vendor":       "vendor",
	".venv":        "venv",
	"__pycache__":  "pycache",
}

// LoadResources (C5) enumerates a skill's scripts/references/assets by fixed
// extension sets without reading file bodies, and infers coarse dependency
// hints from well-known directory names.
func LoadResources(dir string) (*ResourceListing, error) {
	listing := &ResourceListing{}
	seenHints := map[string]struct{}{}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		base := filepath.Base(path)
		if info.IsDir() {
			if hint, ok := dependencyHintDirs[base]; ok {
				if _, dup := seenHints[hint]; !dup {
					seenHints[hint] = struct{}{}
					listing.Dependencies = append(listing.Dependencies, hint)
				}
				return filepath.SkipDir
			}
			if strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(base))
		rf := ResourceFile{
			Path:     "./" + filepath.ToSlash(rel),
			Size:     info.Size(),
			MimeType: inferMimeType(ext),
		}

		switch {
		case inScriptsDir(rel) || extIn(ext, scriptExtensions):
			listing.Scripts = append(listing.Scripts, rf)
		case inReferencesDir(rel) || extIn(ext, referenceExtensions):
			listing.References = append(listing.References, rf)
		case inAssetsDir(rel) || extIn(ext, assetExtensions):
			listing.Assets = append(listing.Assets, rf)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate resources: %w", err)
	}
	return listing, nil
}

func extIn(ext string, set map[string]struct{}) bool {
	_, ok := set[ext]
	return ok
}

func inScriptsDir(rel string) bool {
	return strings.HasPrefix(filepath.ToSlash(rel), "scripts/")
}

func inReferencesDir(rel string) bool {
	return strings.HasPrefix(filepath.ToSlash(rel), "references/")
}

func inAssetsDir(rel string) bool {
	return strings.HasPrefix(filepath.ToSlash(rel), "assets/")
}

func inferMimeType(ext string) string {
	if ext == "" {
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
