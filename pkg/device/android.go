// Package device provides Android device control via ADB.
package device

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // screencap output
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/qa-pilot/pkg/core"
	"github.com/devicelab-dev/qa-pilot/pkg/logger"
)

// DumpPath is where uiautomator writes the hierarchy on the device.
const DumpPath = "/sdcard/window_dump.xml"

// runFunc executes a host command and returns its stdout.
// Replaced in tests.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// AndroidDevice manages an Android device connection via ADB.
// It implements core.Device.
type AndroidDevice struct {
	serial  string
	adbPath string
	run     runFunc
}

var _ core.Device = (*AndroidDevice)(nil)

// DeviceInfo contains basic device information.
type DeviceInfo struct {
	Serial     string
	Model      string
	SDK        string
	Brand      string
	IsEmulator bool
}

// New creates an AndroidDevice for the given serial.
// If serial is empty, it auto-detects the first connected device.
func New(ctx context.Context, serial string) (*AndroidDevice, error) {
	adbPath, err := findADB()
	if err != nil {
		return nil, core.ErrDeviceUnavailable.WithCause(err)
	}
	d := &AndroidDevice{adbPath: adbPath, run: execRun}
	if err := d.attach(ctx, serial); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *AndroidDevice) attach(ctx context.Context, serial string) error {
	// Auto-detect serial if not provided
	if serial == "" {
		detected, err := d.detectDeviceSerial(ctx)
		if err != nil {
			return core.ErrDeviceUnavailable.WithCause(fmt.Errorf("auto-detect failed: %w", err))
		}
		serial = detected
	}
	d.serial = serial

	// Verify device is connected
	if err := d.waitForDevice(ctx, 5*time.Second); err != nil {
		return core.ErrDeviceUnavailable.WithCause(err)
	}
	logger.Info("connected to device %s", d.serial)
	return nil
}

// detectDeviceSerial finds the first connected device serial.
func (d *AndroidDevice) detectDeviceSerial(ctx context.Context) (string, error) {
	out, err := d.run(ctx, d.adbPath, "devices")
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no connected devices found; is the emulator running?")
}

// Serial returns the device serial number.
func (d *AndroidDevice) Serial() string {
	return d.serial
}

// Shell executes a shell command on the device.
func (d *AndroidDevice) Shell(ctx context.Context, cmd string) (string, error) {
	out, err := d.adb(ctx, "shell", cmd)
	return string(out), err
}

// Screenshot captures the screen as PNG bytes.
func (d *AndroidDevice) Screenshot(ctx context.Context) ([]byte, error) {
	out, err := d.adb(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("screencap returned no data")
	}
	return out, nil
}

// DumpHierarchy asks uiautomator for a fresh dump and reads it back.
// Returns core.ErrUIDumpUnavailable when either step fails or the dump is empty.
func (d *AndroidDevice) DumpHierarchy(ctx context.Context) (string, error) {
	if _, err := d.Shell(ctx, "uiautomator dump "+DumpPath); err != nil {
		return "", core.ErrUIDumpUnavailable.WithCause(err)
	}
	raw, err := d.Shell(ctx, "cat "+DumpPath)
	if err != nil {
		return "", core.ErrUIDumpUnavailable.WithCause(err)
	}
	if strings.TrimSpace(raw) == "" {
		return "", core.ErrUIDumpUnavailable
	}
	return raw, nil
}

// Tap taps the given screen coordinates.
func (d *AndroidDevice) Tap(ctx context.Context, x, y int) error {
	logger.Debug("tap (%d, %d)", x, y)
	_, err := d.Shell(ctx, fmt.Sprintf("input tap %d %d", x, y))
	return err
}

// TypeText sends text to the focused field with `input text`.
func (d *AndroidDevice) TypeText(ctx context.Context, text string) error {
	cmd := "input text " + EscapeInputText(text)
	logger.Debug("adb command: %s", cmd)
	out, err := d.Shell(ctx, cmd)
	if err != nil {
		return err
	}
	if s := strings.TrimSpace(out); s != "" {
		logger.Debug("input text result: %s", s)
	}
	return nil
}

// ClearText clears the focused field: long-press delete, jump to end,
// then 30 single deletes.
func (d *AndroidDevice) ClearText(ctx context.Context) error {
	if _, err := d.Shell(ctx, fmt.Sprintf("input keyevent --longpress %d", core.KeyDel)); err != nil {
		return err
	}
	if err := sleep(ctx, 100*time.Millisecond); err != nil {
		return err
	}
	if err := d.KeyEvent(ctx, core.KeyMoveEnd); err != nil {
		return err
	}
	if err := sleep(ctx, 100*time.Millisecond); err != nil {
		return err
	}
	for i := 0; i < 30; i++ {
		if err := d.KeyEvent(ctx, core.KeyDel); err != nil {
			return err
		}
	}
	return sleep(ctx, 200*time.Millisecond)
}

// KeyEvent sends an Android key code.
func (d *AndroidDevice) KeyEvent(ctx context.Context, code int) error {
	_, err := d.Shell(ctx, fmt.Sprintf("input keyevent %d", code))
	return err
}

// Swipe performs a swipe gesture.
func (d *AndroidDevice) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) error {
	_, err := d.Shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs))
	return err
}

var wmSizeRe = regexp.MustCompile(`Physical size:\s*(\d+)x(\d+)`)

// ScreenSize returns the physical size from `wm size`, falling back to the
// dimensions of a screenshot.
func (d *AndroidDevice) ScreenSize(ctx context.Context) (int, int, error) {
	if out, err := d.Shell(ctx, "wm size"); err == nil {
		if m := wmSizeRe.FindStringSubmatch(out); m != nil {
			w, _ := strconv.Atoi(m[1])
			h, _ := strconv.Atoi(m[2])
			return w, h, nil
		}
	}

	png, err := d.Screenshot(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("screen size: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(png))
	if err != nil {
		return 0, 0, fmt.Errorf("screen size: decode screenshot: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// IsInstalled checks if a package is installed.
func (d *AndroidDevice) IsInstalled(ctx context.Context, pkg string) bool {
	out, err := d.Shell(ctx, "pm list packages "+pkg)
	if err != nil {
		return false
	}
	return strings.Contains(out, "package:"+pkg)
}

// Info returns device information.
func (d *AndroidDevice) Info(ctx context.Context) (DeviceInfo, error) {
	info := DeviceInfo{Serial: d.serial}

	if model, err := d.Shell(ctx, "getprop ro.product.model"); err == nil {
		info.Model = strings.TrimSpace(model)
	}
	if sdk, err := d.Shell(ctx, "getprop ro.build.version.sdk"); err == nil {
		info.SDK = strings.TrimSpace(sdk)
	}
	if brand, err := d.Shell(ctx, "getprop ro.product.brand"); err == nil {
		info.Brand = strings.TrimSpace(brand)
	}

	// Check if emulator
	chars, _ := d.Shell(ctx, "getprop ro.kernel.qemu")
	info.IsEmulator = strings.TrimSpace(chars) == "1"

	return info, nil
}

// EscapeInputText prepares text for `adb shell input text`: spaces become
// %s and shell metacharacters are backslash-escaped.
func EscapeInputText(text string) string {
	return inputTextReplacer.Replace(text)
}

// Replacement is single pass, so escaped backslashes are not escaped twice.
var inputTextReplacer = strings.NewReplacer(
	" ", "%s",
	`\`, `\\`,
	"'", `\'`,
	`"`, `\"`,
	"&", `\&`,
	"|", `\|`,
	";", `\;`,
	"(", `\(`,
	")", `\)`,
	"<", `\<`,
	">", `\>`,
	"$", `\$`,
	"`", "\\`",
	"*", `\*`,
	"~", `\~`,
)

// adb executes an ADB command against this device.
func (d *AndroidDevice) adb(ctx context.Context, args ...string) ([]byte, error) {
	cmdArgs := make([]string, 0, len(args)+2)
	if d.serial != "" {
		cmdArgs = append(cmdArgs, "-s", d.serial)
	}
	cmdArgs = append(cmdArgs, args...)

	out, err := d.run(ctx, d.adbPath, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// execRun runs a host command, folding stderr into the error.
func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //#nosec G204 -- adb path from LookPath
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(errMsg))
	}
	return stdout.Bytes(), nil
}

// waitForDevice waits for the device to be available.
func (d *AndroidDevice) waitForDevice(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if d.isConnected(ctx) {
			return nil
		}
		if err := sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
	return fmt.Errorf("timeout waiting for device %s", d.serial)
}

// isConnected checks if the device is connected.
func (d *AndroidDevice) isConnected(ctx context.Context) bool {
	out, err := d.adb(ctx, "get-state")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "device"
}

// findADB locates the ADB binary.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("adb not found in PATH; ensure Android SDK is installed")
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
