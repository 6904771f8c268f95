//go:build unix

package detectors

import "golang.org/x/sys/unix"

func fileOwner(path string) (uid, gid uint32, ok bool) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, false
	}
	return st.Uid, st.Gid, true
}
