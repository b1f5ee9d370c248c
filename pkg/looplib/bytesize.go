package looplib

import "fmt"

// ByteSize formats byte counts for logs and status output.
// A negative value means the size is unknown.
type ByteSize int64

const (
	sizeKB ByteSize = 1 << (10 * (iota + 1))
	sizeMB
	sizeGB
	sizeTB
)

func (b ByteSize) String() string {
	switch {
	case b < 0:
		return "unknown"
	case b >= sizeTB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(sizeTB))
	case b >= sizeGB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(sizeGB))
	case b >= sizeMB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(sizeMB))
	case b >= sizeKB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(sizeKB))
	default:
		return fmt.Sprintf("%d B", int64(b))
	}
}
