//go:build !unix

package tdbx

import "os"

func osPageSize() int64 {
	return int64(os.Getpagesize())
}
