package discover

import (
	"io/fs"
	"syscall"
	"time"
)

func birthTime(fi fs.FileInfo) (time.Time, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return time.Time{}, false
	}
	ts := st.Birthtimespec
	return time.Unix(ts.Sec, ts.Nsec), true
}
