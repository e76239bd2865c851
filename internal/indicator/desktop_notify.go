package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type notification struct {
	appName   string
	summary   string
	body      string
	timeoutMS int
}

// desktopNotify calls org.freedesktop.Notifications.Notify through busctl
// and returns the server-assigned notification ID.
func desktopNotify(ctx context.Context, note notification) (uint32, error) {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		note.appName,
		"0", // replaces_id
		"",  // app_icon
		note.summary,
		note.body,
		"0", // actions
		"0", // hints
		strconv.Itoa(note.timeoutMS),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	reply := strings.TrimSpace(string(out))
	if err != nil {
		if reply == "" {
			return 0, fmt.Errorf("busctl notify: %w", err)
		}
		return 0, fmt.Errorf("busctl notify: %w (%s)", err, reply)
	}

	fields := strings.Fields(reply)
	if len(fields) != 2 || fields[0] != "u" {
		return 0, fmt.Errorf("busctl notify: unexpected reply %q", reply)
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("busctl notify: parse id %q: %w", fields[1], err)
	}
	return uint32(id), nil
}
