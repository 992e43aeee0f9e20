//go:build linux

package sysutil

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux RNDADDENTROPY / RNDGETENTCNT ioctl numbers, from
// include/uapi/linux/random.h. golang.org/x/sys/unix does not export these
// (they are random-driver-specific, not general-purpose), so they are
// reproduced here from the kernel header's _IOW/_IOR encoding.
const (
	rndAddEntropy = 0x40085203
	rndGetEntCnt  = 0x80045200
)

// randPoolInfo mirrors struct rand_pool_info from linux/random.h: an
// entropy credit in bits followed by the raw buffer, sized to the entropy
// count field plus buf_size bytes' worth of uint32 words.
type randPoolInfo struct {
	entropyCount int32
	bufSize      int32
}

// AddKernelEntropy credits creditBits worth of entropy to the kernel CSPRNG
// using buf's bytes, via the RNDADDENTROPY ioctl on /dev/random.
func AddKernelEntropy(fd int, creditBits int, buf []byte) error {
	packet := make([]byte, 8+len(buf))

	info := (*randPoolInfo)(unsafe.Pointer(&packet[0]))
	info.entropyCount = int32(creditBits)
	info.bufSize = int32(len(buf))
	copy(packet[8:], buf)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(rndAddEntropy), uintptr(unsafe.Pointer(&packet[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

// EntropyCount returns the kernel's current entropy estimate in bits via
// RNDGETENTCNT.
func EntropyCount(fd int) (int, error) {
	var count int32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(rndGetEntCnt), uintptr(unsafe.Pointer(&count)))
	if errno != 0 {
		return 0, errno
	}
	return int(count), nil
}
