package dispatcher

import "time"

func msToDuration(ms uint64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func durationToMs(d time.Duration) uint64 {
	return uint64(d / time.Millisecond)
}
