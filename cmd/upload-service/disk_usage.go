// disk_usage.go — ёмкость файловой системы под публичным каталогом
// для GET /api/v1/info. Только Unix-подобные системы.
package main

import (
	"fmt"
	"syscall"
)

// getDiskUsage возвращает total, used, available в байтах.
// used считается по свободным блокам, available — по блокам,
// доступным непривилегированному процессу, поэтому
// used + available может быть меньше total на резерв root.
func getDiskUsage(path string) (total, used, available int64, err error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, 0, 0, fmt.Errorf("statfs %s: %w", path, err)
	}

	blockSize := int64(st.Bsize)
	total = int64(st.Blocks) * blockSize
	used = (int64(st.Blocks) - int64(st.Bfree)) * blockSize
	available = int64(st.Bavail) * blockSize

	return total, used, available, nil
}
