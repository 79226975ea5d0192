package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/hashicorp/go-version"
)

const sdksDir string = "Platforms/MacOSX.platform/Developer/SDKs"
const settingsFileName string = "SDKSettings.json"

var sdkNamePattern = regexp.MustCompile(`^MacOSX([0-9][0-9.]*)\.sdk$`)

type SDK struct {
	Root             string
	Version          *version.Version
	DeploymentTarget *version.Version
}

func (sdk SDK) FrameworksDir() string {
	return filepath.Join(sdk.Root, "System", "Library", "Frameworks")
}

// Finds the newest versioned macOS SDK below a developer directory.
func LocateSDK(developerDir string) (string, error) {
	dir := filepath.Join(developerDir, sdksDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("could not list SDKs: %w", err)
	}

	versions := make([]*version.Version, 0, len(entries))
	names := make(map[*version.Version]string)
	fallback := ""
	for _, entry := range entries {
		match := sdkNamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			if entry.Name() == "MacOSX.sdk" {
				fallback = entry.Name()
			}
			continue
		}
		v, err := version.NewVersion(match[1])
		if err != nil {
			continue
		}
		versions = append(versions, v)
		names[v] = entry.Name()
	}

	if len(versions) == 0 {
		if fallback == "" {
			return "", fmt.Errorf("no macOS SDK found in %s", dir)
		}
		return filepath.Join(dir, fallback), nil
	}

	sort.Sort(version.Collection(versions))
	return filepath.Join(dir, names[versions[len(versions)-1]]), nil
}

// Opens an SDK root. deploymentTarget overrides the SDK default when not empty.
func OpenSDK(root string, deploymentTarget string) (SDK, error) {
	sdk := SDK{Root: root}
	if _, err := os.Stat(sdk.FrameworksDir()); err != nil {
		return SDK{}, fmt.Errorf("not an SDK root %s: %w", root, err)
	}

	settingsBytes, err := os.ReadFile(filepath.Join(root, settingsFileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return SDK{}, err
	default:
		settings, err := parse[sdkSettings](settingsBytes)
		if err != nil {
			return SDK{}, fmt.Errorf("error parsing %s: %w", settingsFileName, err)
		}
		if settings.Version != "" {
			if sdk.Version, err = version.NewVersion(settings.Version); err != nil {
				return SDK{}, fmt.Errorf("error parsing SDK version: %s", settings.Version)
			}
		}
		if settings.DefaultDeploymentTarget != "" {
			if sdk.DeploymentTarget, err = version.NewVersion(settings.DefaultDeploymentTarget); err != nil {
				return SDK{}, fmt.Errorf("error parsing deployment target: %s", settings.DefaultDeploymentTarget)
			}
		}
	}

	if deploymentTarget != "" {
		if sdk.DeploymentTarget, err = version.NewVersion(deploymentTarget); err != nil {
			return SDK{}, fmt.Errorf("error parsing deployment target: %s", deploymentTarget)
		}
	}
	return sdk, nil
}

func parse[T interface{}](source []byte) (T, error) {
	var parsedBody T
	err := json.Unmarshal(source, &parsedBody)
	return parsedBody, err
}

type sdkSettings struct {
	CanonicalName           string `json:"CanonicalName"`
	Version                 string `json:"Version"`
	DefaultDeploymentTarget string `json:"DefaultDeploymentTarget"`
}
