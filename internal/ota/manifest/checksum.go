package manifest

import (
	"crypto/sha256"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const hashChunkSize = 64 * 1024 * 1024

// ReadSHA256 computes the SHA-256 of a regular file by memory-mapping it and
// hashing in 64 MiB chunks. OTA images are multi-GB, so the mapping avoids
// both a userspace copy per read and the small-buffer read loop; callers on a
// latency-sensitive path run this from its own goroutine.
func ReadSHA256(path string) (Digest, error) {
	var digest Digest

	f, err := os.Open(path)
	if err != nil {
		return digest, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return digest, fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	hasher := sha256.New()
	if size > 0 {
		data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			return digest, fmt.Errorf("mmap %s: %w", path, err)
		}
		defer unix.Munmap(data)

		for off := 0; off < len(data); off += hashChunkSize {
			end := off + hashChunkSize
			if end > len(data) {
				end = len(data)
			}
			hasher.Write(data[off:end])
		}
	}

	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}
