package firefox

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Profile is a Firefox profile that has a session file to import from.
type Profile struct {
	Name       string
	Path       string
	IsRelative bool
	IsDefault  bool
}

// FindFirefoxDir returns the platform-specific Firefox profile directory.
func FindFirefoxDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	switch runtime.GOOS {
	case "linux":
		return filepath.Join(home, ".mozilla", "firefox")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Firefox")
	default:
		return ""
	}
}

// ParseProfilesINI reads profiles.ini and returns the profiles that have a
// session file.
func ParseProfilesINI(iniPath, firefoxDir string) ([]Profile, error) {
	f, err := os.Open(iniPath)
	if err != nil {
		return nil, fmt.Errorf("open profiles.ini: %w", err)
	}
	defer f.Close()

	var profiles []Profile
	var current *Profile

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if current != nil {
				profiles = append(profiles, *current)
				current = nil
			}
			if strings.HasPrefix(line[1:len(line)-1], "Profile") {
				current = &Profile{}
			}
			continue
		}
		if current == nil {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "Name":
			current.Name = value
		case "Path":
			current.Path = value
		case "IsRelative":
			current.IsRelative = value == "1"
		case "Default":
			current.IsDefault = value == "1"
		}
	}
	if current != nil {
		profiles = append(profiles, *current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan profiles.ini: %w", err)
	}

	var usable []Profile
	for _, p := range profiles {
		if p.IsRelative {
			p.Path = filepath.Join(firefoxDir, p.Path)
		}
		if hasSessionFile(p.Path) {
			usable = append(usable, p)
		}
	}
	return usable, nil
}

func hasSessionFile(profileDir string) bool {
	for _, name := range sessionFiles {
		if _, err := os.Stat(filepath.Join(profileDir, "sessionstore-backups", name)); err == nil {
			return true
		}
	}
	return false
}

// DiscoverProfiles finds and parses Firefox profiles on this system.
func DiscoverProfiles() ([]Profile, error) {
	dir := FindFirefoxDir()
	if dir == "" {
		return nil, fmt.Errorf("could not find Firefox directory for %s", runtime.GOOS)
	}
	return ParseProfilesINI(filepath.Join(dir, "profiles.ini"), dir)
}

// PickProfile returns the profile called name, or the default profile (then
// the first one) when name is empty.
func PickProfile(profiles []Profile, name string) (Profile, error) {
	if len(profiles) == 0 {
		return Profile{}, fmt.Errorf("no Firefox profiles with a saved session")
	}
	if name != "" {
		for _, p := range profiles {
			if p.Name == name {
				return p, nil
			}
		}
		return Profile{}, fmt.Errorf("firefox profile %q not found", name)
	}
	for _, p := range profiles {
		if p.IsDefault {
			return p, nil
		}
	}
	return profiles[0], nil
}
