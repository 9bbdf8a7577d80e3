package ledgerstore

import (
	"fmt"

	"github.com/shirou/gopsutil/disk"
	"github.com/sirupsen/logrus"
)

// checkFreeSpace refuses to open the store when the filesystem holding
// path has less than minimumFreeGB gigabytes available.
func checkFreeSpace(path string, minimumFreeGB uint, log *logrus.Logger) error {
	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("disk usage for %s: %w", path, err)
	}

	freeGB := float64(usage.Free) / 1e9
	totalGB := float64(usage.Total) / 1e9

	log.WithFields(logrus.Fields{
		"path":       path,
		"total (GB)": fmt.Sprintf("%.2f", totalGB),
		"free (GB)":  fmt.Sprintf("%.2f", freeGB),
	}).Info("disk usage")

	if freeGB < float64(minimumFreeGB) {
		return fmt.Errorf(
			"not enough free space at %s: %.2f GB free, %d GB required",
			path, freeGB, minimumFreeGB,
		)
	}
	return nil
}
