package store

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const imageExt = ".png"

// LocalImageName maps an image reference found in a document body to its file name under
// resources/images.
//
// Remote, file and data references are hashed (sha1 of the reference string) so the name is
// stable and filesystem safe. Anything else keeps its last path segment with separators and
// ".." neutralised.
func LocalImageName(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if hashedRef(ref) {
		return hashName(ref)
	}
	name := ref
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ReplaceAll(name, `\`, "_")
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, "..", "__")
	if name == "" || name == "." || strings.HasPrefix(name, ".") {
		return hashName(ref)
	}
	return name
}

func hashedRef(ref string) bool {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:") {
		return true
	}
	scheme, _, ok := strings.Cut(lower, "://")
	if !ok {
		return false
	}
	switch scheme {
	case "http", "https", "file":
		return true
	}
	return false
}

func hashName(ref string) string {
	sum := sha1.Sum([]byte(ref))
	return hex.EncodeToString(sum[:]) + imageExt
}

// Images lists the image file names stored for a document, sorted.
func (s Store) Images(id string) ([]string, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	dir := s.imagesDir(id)
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, s.ioFail("list images", err, "doc", id, "path", dir)
	}
	out := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (s Store) ImageRaw(id string, name string) ([]byte, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	if err := validName("image name", name); err != nil {
		return nil, err
	}
	path := filepath.Join(s.imagesDir(id), name)
	b, ok, err := readFileIfExists(path)
	if err != nil {
		return nil, s.ioFail("read image", err, "doc", id, "path", path)
	}
	if !ok {
		return nil, fmt.Errorf("image %s/%s: %w", id, name, ErrNotFound)
	}
	return b, nil
}

// Image decodes a stored image.
func (s Store) Image(id string, name string) (image.Image, error) {
	b, err := s.ImageRaw(id, name)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		s.log().Warn("decode image", "doc", id, "image", name, "error", err)
		return nil, fmt.Errorf("image %s/%s: %w: %v", id, name, ErrCorrupt, err)
	}
	return img, nil
}

// PutImage stores img as PNG under the local name derived from ref and returns that name.
func (s Store) PutImage(id string, ref string, img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("put image %s: nil image", ref)
	}
	name := LocalImageName(ref)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image %s: %w", ref, err)
	}
	if err := s.PutImageRaw(id, name, buf.Bytes()); err != nil {
		return "", err
	}
	return name, nil
}

// PutImageRaw stores already-encoded image bytes under name.
func (s Store) PutImageRaw(id string, name string, data []byte) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := validName("image name", name); err != nil {
		return err
	}
	if err := s.ensureDocumentFolder(id); err != nil {
		return err
	}
	path := filepath.Join(s.imagesDir(id), name)
	if err := AtomicWriteFile(path, data, 0o600); err != nil {
		return s.ioFail("write image", err, "doc", id, "path", path)
	}
	return nil
}

// ClearImagesOld deletes every stored image whose name is not in keep and returns the names it
// removed. Running it twice with the same keep list removes nothing the second time.
func (s Store) ClearImagesOld(id string, keep []string) ([]string, error) {
	names, err := s.Images(id)
	if err != nil {
		return nil, err
	}
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	var removed []string
	for _, name := range names {
		if keepSet[name] {
			continue
		}
		path := filepath.Join(s.imagesDir(id), name)
		if err := RemoveIfExists(path); err != nil {
			return removed, s.ioFail("remove orphaned image", err, "doc", id, "path", path)
		}
		removed = append(removed, name)
	}
	if len(removed) > 0 {
		s.log().Debug("cleared orphaned images", "doc", id, "count", len(removed))
	}
	return removed, nil
}
