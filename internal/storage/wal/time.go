package wal

import "time"

func defaultNowSeconds() uint64 {
	return uint64(time.Now().Unix())
}
