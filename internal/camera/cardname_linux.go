//go:build linux

package camera

import (
	"strings"

	"github.com/vladimirvivien/go4vl/device"
	"golang.org/x/sys/unix"
)

// v4l2CardName は VIDIOC_QUERYCAP のカード名を返す
// sysfs の name を持たないノード（一部のループバック・仮想ドライバ）向けの代替で、
// name がある場合は呼ばれない。
// キャラクタデバイスでない場合や取得に失敗した場合は空文字
func v4l2CardName(devPath string) string {
	if !isCharDevice(devPath) {
		return ""
	}

	dev, err := device.Open(devPath)
	if err != nil {
		return ""
	}
	defer func() {
		_ = dev.Close()
	}()

	return strings.TrimSpace(dev.Capability().Card)
}

func isCharDevice(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Mode&unix.S_IFMT == unix.S_IFCHR
}
