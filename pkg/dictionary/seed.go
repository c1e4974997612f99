package dictionary

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Names of the packaged dictionary image and its content hash inside an
// asset bundle.
const (
	AppDictAsset     = "pinyin_dict.db"
	AppDictHashAsset = "pinyin_dict.db.hash"
)

// ErrAssetMissing is returned when the asset bundle has no dictionary image.
var ErrAssetMissing = errors.New("dictionary asset missing")

// HashFile returns the path of the hash recorded next to a dictionary copy.
func HashFile(target string) string {
	return target + ".hash"
}

// EnsureAppDict copies the packaged dictionary image to target unless the
// hash recorded beside target already equals the packaged hash. It reports
// whether a copy was made.
//
// The packaged hash comes from AppDictHashAsset, or from the image digest
// when the bundle carries no hash. Failing to record the hash after a copy is
// not an error; the next call simply copies again.
func EnsureAppDict(assets fs.FS, target string) (bool, error) {
	if assets == nil {
		return false, ErrAssetMissing
	}

	want, err := packagedHash(assets)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(target); err == nil {
		if got, err := os.ReadFile(HashFile(target)); err == nil && strings.TrimSpace(string(got)) == want {
			return false, nil
		}
	} else if !os.IsNotExist(err) {
		return false, err
	}

	if err := copyAsset(assets, AppDictAsset, target); err != nil {
		return false, err
	}
	_ = os.WriteFile(HashFile(target), []byte(want), 0o644)
	return true, nil
}

func packagedHash(assets fs.FS) (string, error) {
	data, err := fs.ReadFile(assets, AppDictHashAsset)
	if err == nil {
		if h := strings.TrimSpace(string(data)); h != "" {
			return h, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", AppDictHashAsset, err)
	}

	f, err := assets.Open(AppDictAsset)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrAssetMissing, AppDictAsset)
		}
		return "", err
	}
	defer f.Close()
	return digest(f)
}

// digest returns the hex xxhash of r, the format of the hash files written by
// the builder.
func digest(r io.Reader) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// FileDigest returns the content hash of a file on disk.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest(f)
}

// copyAsset writes the asset to a temporary file beside target and renames it
// into place, so an interrupted copy never leaves a truncated dictionary.
func copyAsset(assets fs.FS, name, target string) error {
	src, err := assets.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrAssetMissing, name)
		}
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// Stale journal files of a previous image would be replayed onto the new one.
	for _, suffix := range []string{"-journal", "-wal", "-shm"} {
		_ = os.Remove(target + suffix)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to install %s: %w", target, err)
	}
	return nil
}
