// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type (
	// CargoManifest is the subset of Cargo.toml used for release metadata.
	CargoManifest struct {
		Package CargoPackage `toml:"package"`
	}

	// CargoPackage is the [package] table.
	CargoPackage struct {
		Name        string   `toml:"name"`
		Version     string   `toml:"version"`
		Description string   `toml:"description"`
		License     string   `toml:"license"`
		Repository  string   `toml:"repository"`
		Authors     []string `toml:"authors"`
	}
)

// ReadCargoManifest parses the Cargo.toml at path.
func ReadCargoManifest(path string) (CargoManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CargoManifest{}, fmt.Errorf("reading cargo manifest: %w", err)
	}
	var m CargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return CargoManifest{}, fmt.Errorf("parsing cargo manifest %s: %w", path, err)
	}
	if m.Package.Version == "" {
		return CargoManifest{}, fmt.Errorf("cargo manifest %s has no package.version", path)
	}
	return m, nil
}
