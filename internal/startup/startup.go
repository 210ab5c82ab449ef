package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const appID = "com.pixpmusic.gopher-keys"

// Enable registers the tool to launch at login with the given profile. An
// empty profile starts it in setup mode.
func Enable(profilePath string) error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}
	args := launchArgs(execPath, profilePath)

	switch runtime.GOOS {
	case "darwin":
		return writeFile(macOSPlistPath(), macOSPlist(args))
	case "linux":
		return writeFile(linuxDesktopPath(), linuxDesktopEntry(args))
	case "windows":
		return enableWindows(args)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// Disable removes the login entry
func Disable() error {
	switch runtime.GOOS {
	case "darwin":
		return removeFile(macOSPlistPath())
	case "linux":
		return removeFile(linuxDesktopPath())
	case "windows":
		return disableWindows()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// IsEnabled checks if the tool is registered for login
func IsEnabled() bool {
	switch runtime.GOOS {
	case "darwin":
		return fileExists(macOSPlistPath())
	case "linux":
		return fileExists(linuxDesktopPath())
	case "windows":
		return exec.Command("reg", "query", windowsRegistryKey, "/v", windowsAppName).Run() == nil
	default:
		return false
	}
}

func launchArgs(execPath, profilePath string) []string {
	args := []string{execPath}
	if profilePath != "" {
		args = append(args, "-profile", profilePath)
	}
	return args
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func removeFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// --- macOS ---

func macOSPlistPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Library", "LaunchAgents", appID+".plist")
}

func macOSPlist(args []string) string {
	var b strings.Builder
	for _, a := range args {
		fmt.Fprintf(&b, "        <string>%s</string>\n", xmlEscape(a))
	}

	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
%s    </array>
    <key>RunAtLoad</key>
    <true/>
</dict>
</plist>
`, appID, b.String())
}

func xmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// --- Linux ---

func linuxDesktopPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "autostart", "gopher-keys.desktop")
}

// The prompt needs a console, so the entry asks for a terminal.
func linuxDesktopEntry(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = desktopQuote(a)
	}

	return fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=GopherKeys
Exec=%s
Terminal=true
Hidden=false
NoDisplay=false
X-GNOME-Autostart-enabled=true
`, strings.Join(quoted, " "))
}

func desktopQuote(arg string) string {
	if !strings.ContainsAny(arg, " \t\"'\\$`") {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(arg) + `"`
}

// --- Windows ---

const windowsRegistryKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`
const windowsAppName = "GopherKeys"

func windowsCommandLine(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = `"` + a + `"`
	}
	return strings.Join(quoted, " ")
}

func enableWindows(args []string) error {
	cmd := exec.Command("reg", "add", windowsRegistryKey,
		"/v", windowsAppName,
		"/t", "REG_SZ",
		"/d", windowsCommandLine(args),
		"/f")
	return cmd.Run()
}

func disableWindows() error {
	cmd := exec.Command("reg", "delete", windowsRegistryKey,
		"/v", windowsAppName,
		"/f")
	output, err := cmd.CombinedOutput()
	// reg exits non-zero when the value is already gone
	if err != nil && !strings.Contains(string(output), "unable to find the specified registry key or value") {
		return err
	}
	return nil
}
