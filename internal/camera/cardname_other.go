//go:build !linux

package camera

func v4l2CardName(string) string {
	return ""
}
