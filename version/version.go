/*
 * KubeSentinel - Autonomous Kubernetes Remediation Agent
 * Copyright (c) 2025 Edilson Freitas
 * License: MIT
 */
package version

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
)

var (
	// Populated at build time via ldflags.
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"

	// LatestVersionURL points at the GitHub API for the newest release.
	LatestVersionURL = "https://api.github.com/repos/diillson/kubesentinel/releases/latest"
)

// VersionInfo is the structured build information.
type VersionInfo struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildDate  string `json:"build_date"`
}

// GetCurrentVersion returns the current build information.
func GetCurrentVersion() VersionInfo {
	return VersionInfo{
		Version:    Version,
		CommitHash: CommitHash,
		BuildDate:  BuildDate,
	}
}

// CheckLatestVersion queries GitHub for the newest release. It returns the
// latest version string and whether an update is available.
func CheckLatestVersion() (string, bool, error) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest("GET", LatestVersionURL, nil)
	if err != nil {
		return "", false, err
	}

	req.Header.Set("User-Agent", "KubeSentinel-Version-Checker")

	resp, err := client.Do(req)
	if err != nil {
		return "", false, err
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close response body: %v\n", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("version check failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, err
	}

	var releaseInfo struct {
		TagName string `json:"tag_name"`
	}

	if err := json.Unmarshal(body, &releaseInfo); err != nil {
		return "", false, err
	}

	latestVersion := strings.TrimPrefix(releaseInfo.TagName, "v")

	if Version == "dev" || Version == "unknown" {
		return latestVersion, true, nil
	}

	return latestVersion, needsUpdate(Version, latestVersion), nil
}

// splitPreRelease splits "1.2.3-beta" into its base and pre-release parts.
func splitPreRelease(version string) (string, string) {
	version = strings.TrimPrefix(version, "v")
	if idx := strings.Index(version, "-"); idx >= 0 {
		return version[:idx], version[idx+1:]
	}
	return version, ""
}

// needsUpdate compares two semantic versions component by component.
// Development builds ("dev", "unknown", 0.0.0 pseudo-versions) never report
// an update here; CheckLatestVersion handles them before comparing.
func needsUpdate(currentVersion, latestVersion string) bool {
	currentVersion = strings.TrimPrefix(currentVersion, "v")
	latestVersion = strings.TrimPrefix(latestVersion, "v")

	if currentVersion == "" || currentVersion == "dev" || currentVersion == "unknown" {
		return false
	}

	currentBase, currentPre := splitPreRelease(currentVersion)
	latestBase, latestPre := splitPreRelease(latestVersion)

	// Pseudo-versions (0.0.0-<timestamp>-<hash>) are development builds.
	if currentBase == "0.0.0" {
		return false
	}

	currentParts := strings.Split(currentBase, ".")
	latestParts := strings.Split(latestBase, ".")

	for len(currentParts) < 3 {
		currentParts = append(currentParts, "0")
	}
	for len(latestParts) < 3 {
		latestParts = append(latestParts, "0")
	}

	for i := 0; i < 3; i++ {
		current, currentErr := strconv.Atoi(currentParts[i])
		latest, latestErr := strconv.Atoi(latestParts[i])

		if currentErr != nil {
			current = 0
		}
		if latestErr != nil {
			latest = 0
		}

		if latest > current {
			return true
		} else if current > latest {
			return false
		}
	}

	// Equal base versions: a stable release supersedes a pre-release of the
	// same version, and pre-releases order lexically.
	if currentPre != "" && latestPre == "" {
		return true
	}
	if currentPre == "" && latestPre != "" {
		return false
	}
	if currentPre != "" && latestPre != "" {
		return latestPre > currentPre
	}

	return false
}

// FormatVersionInfo renders the version information, optionally including the
// latest-release check.
func FormatVersionInfo(info VersionInfo, includeLatest bool) string {
	var result strings.Builder

	version, commitHash, buildDate := GetBuildInfo()

	result.WriteString(fmt.Sprintf("KubeSentinel version: %s\n", version))
	result.WriteString(fmt.Sprintf("Commit: %s\n", commitHash))

	if buildDate == "unknown" {
		if execPath, err := os.Executable(); err == nil {
			if stat, err := os.Stat(execPath); err == nil {
				modTime := stat.ModTime()
				buildDate = fmt.Sprintf("%s (approximated from binary mtime)",
					modTime.Format("2006-01-02 15:04:05"))
			}
		}
	}

	result.WriteString(fmt.Sprintf("Build: %s\n", buildDate))

	if includeLatest {
		latestVersion, hasUpdate, err := CheckLatestVersion()
		if err == nil {
			if hasUpdate {
				result.WriteString(fmt.Sprintf("\nUpdate available! Latest version: %s\n", latestVersion))
				result.WriteString("   Run 'go install github.com/diillson/kubesentinel@latest' to update.\n")
			} else {
				result.WriteString("\nYou are running the latest version.\n")
			}
		} else {
			result.WriteString(fmt.Sprintf("\nCould not check for updates: %s\n", err.Error()))
		}
	}

	return result.String()
}

// GetBuildInfo resolves version information, falling back to VCS data from
// the embedded build info when ldflags were not set.
func GetBuildInfo() (string, string, string) {
	version := Version
	commitHash := CommitHash
	buildDate := BuildDate

	if version == "dev" || commitHash == "unknown" || buildDate == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					if commitHash == "unknown" && len(setting.Value) >= 8 {
						commitHash = setting.Value[:8]
					}
				case "vcs.time":
					if buildDate == "unknown" {
						if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
							buildDate = t.Format("2006-01-02 15:04:05")
						} else {
							buildDate = setting.Value
						}
					}
				}
			}

			if version == "dev" && info.Main.Version != "" {
				version = info.Main.Version
			}
		}
	}

	return version, commitHash, buildDate
}
