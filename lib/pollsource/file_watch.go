// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollsource

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// watchDebounce coalesces bursts of writes into one reload.
const watchDebounce = 50 * time.Millisecond

// fileWatcher reports writes to one file via inotify on its parent
// directory. Watching the directory rather than the file catches atomic
// renames, which replace the inode a file-level watch would hold.
type fileWatcher struct {
	fd       int
	filename string
}

func watchFile(path string) (*fileWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if _, err := unix.InotifyAddWatch(fd, filepath.Dir(path), unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO|unix.IN_MODIFY); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &fileWatcher{fd: fd, filename: filepath.Base(path)}, nil
}

func (w *fileWatcher) close() {
	unix.Close(w.fd)
}

// run calls onChange after each debounced burst of events for the
// file until ctx is done. poll(2) uses a 100ms timeout so cancellation
// is noticed promptly.
func (w *fileWatcher) run(ctx context.Context, onChange func()) {
	buffer := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return
		}

		descriptors := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
		count, err := unix.Poll(descriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(w.fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}
		if !inotifyMatchesFile(buffer[:bytesRead], w.filename) {
			continue
		}

		time.Sleep(watchDebounce)
		w.drain(buffer)
		onChange()
	}
}

func (w *fileWatcher) drain(buffer []byte) {
	for {
		if _, err := unix.Read(w.fd, buffer); err != nil {
			return
		}
	}
}

// inotifyMatchesFile reports whether any event in buffer names the
// target file. Layout from inotify(7):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, null-padded to alignment
//	};
func inotifyMatchesFile(buffer []byte, target string) bool {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}
		if nameLength > 0 {
			name := buffer[offset+unix.SizeofInotifyEvent : offset+eventSize]
			if end := indexNull(name); end >= 0 {
				name = name[:end]
			}
			if string(name) == target {
				return true
			}
		}
		offset += eventSize
	}
	return false
}

func indexNull(data []byte) int {
	for i, b := range data {
		if b == 0 {
			return i
		}
	}
	return -1
}
