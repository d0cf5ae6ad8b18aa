package install

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/desktop-updater/internal/domain/update"
	"github.com/oshokin/desktop-updater/internal/version"
)

const (
	// infoPlistName is the bundle metadata file inside Contents.
	infoPlistName = "Info.plist"
	// bundleVersionKey holds the build version of a bundle.
	bundleVersionKey = "CFBundleVersion"
)

var errVersionKeyMissing = errors.New("bundle version key not found")

// CurrentVersion returns the installed application version. Bundles report
// CFBundleVersion from Info.plist; other layouts, and bundles whose metadata
// cannot be read, report the build version of this binary.
func CurrentVersion(layout *update.Layout) string {
	if layout == nil || !layout.IsBundle {
		return version.Short()
	}

	v, err := ReadBundleVersion(layout.AppBundlePath)
	if err != nil || v == "" {
		return version.Short()
	}

	return v
}

// ReadBundleVersion reads CFBundleVersion from <bundle>/Contents/Info.plist.
func ReadBundleVersion(bundle string) (string, error) {
	path := filepath.Join(bundle, contentsDir, infoPlistName)

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", infoPlistName, err)
	}

	defer func() {
		_ = file.Close()
	}()

	return plistString(file, bundleVersionKey)
}

// plistString scans an XML property list for the <string> following <key>name</key>.
// Nested dictionaries are scanned too; the first match wins.
func plistString(r io.Reader, name string) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		matched bool
		inKey   bool
		keyText strings.Builder
	)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%s: %w", name, errVersionKeyMissing)
		}

		if err != nil {
			return "", fmt.Errorf("decode %s: %w", infoPlistName, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "key":
				inKey = true

				keyText.Reset()
			case matched && t.Name.Local == "string":
				var value string
				if err = decoder.DecodeElement(&value, &t); err != nil {
					return "", fmt.Errorf("decode %s value: %w", name, err)
				}

				return strings.TrimSpace(value), nil
			default:
				matched = false
			}
		case xml.CharData:
			if inKey {
				keyText.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "key" {
				inKey = false
				matched = strings.TrimSpace(keyText.String()) == name
			}
		}
	}
}
