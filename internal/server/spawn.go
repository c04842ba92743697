package server

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// checkShell reports whether path is an absolute, executable shell.
func checkShell(path string) bool {
	if path == "" || path[0] != '/' {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}

// resolveShell picks the shell for spawned panes: the configured override,
// then $SHELL, then the user's passwd entry, then /bin/sh.
func resolveShell(override string) string {
	if checkShell(override) {
		return override
	}
	if shell := os.Getenv("SHELL"); checkShell(shell) {
		return shell
	}
	if shell := passwdShell(os.Getuid()); checkShell(shell) {
		return shell
	}
	return "/bin/sh"
}

// passwdShell reads the login shell for uid from /etc/passwd.
func passwdShell(uid int) string {
	f, err := os.Open("/etc/passwd")
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Split(sc.Text(), ":")
		if len(fields) < 7 {
			continue
		}
		if id, err := strconv.Atoi(fields[2]); err == nil && id == uid {
			return fields[6]
		}
	}
	return ""
}

// prepareSlave sets the PTY slave's termios the way shells expect: output
// post-processing with NL→CR+NL and CR→NL on input.
func prepareSlave(slave *os.File) error {
	fd := int(slave.Fd())
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("tcgetattr: %w", err)
	}
	tio.Oflag |= unix.OPOST | unix.ONLCR
	tio.Iflag |= unix.ICRNL
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return fmt.Errorf("tcsetattr: %w", err)
	}
	return nil
}

// spawnShell starts the shell with the slave as its controlling terminal
// and stdio. The child runs in a new process session; every descriptor
// except the duplicated slave is closed across exec, so neither the
// listen socket nor any master leaks into user shells.
func spawnShell(slave *os.File, shell string) (*exec.Cmd, error) {
	cmd := exec.Command(shell)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.Env = append(os.Environ(),
		"TERM=xterm-256color",
		fmt.Sprintf("MUXKIT=%d", os.Getpid()),
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", shell, err)
	}
	return cmd, nil
}
