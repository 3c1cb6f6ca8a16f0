//go:build unix

package tdbx

import "golang.org/x/sys/unix"

func osPageSize() int64 {
	return int64(unix.Getpagesize())
}
